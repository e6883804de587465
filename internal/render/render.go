// SPDX-License-Identifier: MPL-2.0

package render

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/driver"
)

const (
	// DescriptorFileName is the file name the build tool evaluates inside a workspace.
	DescriptorFileName = "default.nix"

	mesaTemplate    = "mesa.nix.tmpl"
	nvidiaTemplate  = "nvidia.nix.tmpl"
	serviceTemplate = "nix-opengl-driver.service.tmpl"
)

var (
	//go:embed templates/*.tmpl
	templateFS embed.FS

	templates = template.Must(template.New("render").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl"))
)

type (
	nvidiaParams struct {
		Version string
		Hash    string
	}

	serviceParams struct {
		ToolPath string
	}
)

// Descriptor renders the build descriptor for d. For Nvidia, an empty hash
// renders the template's deliberately invalid placeholder so that the build
// tool reports the real hash. Mesa ignores hash.
func Descriptor(d driver.Driver, hash string) (string, error) {
	switch d.Kind() {
	case driver.KindMesa:
		return execute(mesaTemplate, nil)
	case driver.KindNvidia:
		if d.Version() == "" {
			return "", fmt.Errorf("render %s: %w", nvidiaTemplate, driver.ErrEmptyVersion)
		}
		return execute(nvidiaTemplate, nvidiaParams{Version: d.Version(), Hash: hash})
	}
	return "", fmt.Errorf("render descriptor: unsupported driver kind %d", d.Kind())
}

// ServiceUnit renders the boot-time sync unit invoking toolPath.
func ServiceUnit(toolPath string) (string, error) {
	if strings.TrimSpace(toolPath) == "" {
		return "", fmt.Errorf("render %s: tool path must not be empty", serviceTemplate)
	}
	return execute(serviceTemplate, serviceParams{ToolPath: quoteUnitArg(toolPath)})
}

// TmpfilesRule returns the single-line rule that recreates target as a symlink
// to source at boot.
func TmpfilesRule(target, source string) string {
	return fmt.Sprintf("L %s - - - - %s\n", target, source)
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// quoteUnitArg quotes s for an ExecStart= line when it contains characters
// systemd would otherwise split on.
func quoteUnitArg(s string) string {
	if !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
