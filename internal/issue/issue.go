// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	DetectionFailedId Id = iota + 1
	ConflictingOverrideId
	HashDiscoveryFailedId
	BuildFailedId
	NixNotFoundId
	GCRootFailedId
	CorruptStateId
	CorruptHashStoreId
	LifecycleStepFailedId
	PermissionDeniedId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // documentation about this issue type
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue's markdown with the glamour style at stylePath
// (a builtin style name such as "dark", or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	detectionFailedIssue = &Issue{
		id: DetectionFailedId,
		mdMsg: `
# Could not recognise the NVIDIA driver version!

The kernel exposes an NVIDIA version file, but its contents do not contain a
"Kernel Module <version>" line.

## Things you can try:
- Inspect the file:
~~~
$ cat /proc/driver/nvidia/version
~~~
- Pin the version explicitly:
~~~
$ nix-opengl-driver --force-nvidia 570.133.07 sync
~~~
- Or build the Mesa farm instead:
~~~
$ nix-opengl-driver --force-mesa sync
~~~`,
		extLinks: []HttpLink{"https://download.nvidia.com/XFree86/Linux-x86_64/"},
	}

	conflictingOverrideIssue = &Issue{
		id: ConflictingOverrideId,
		mdMsg: `
# Conflicting driver overrides!

--force-mesa and --force-nvidia select different drivers; pass at most one.`,
	}

	hashDiscoveryFailedIssue = &Issue{
		id: HashDiscoveryFailedId,
		mdMsg: `
# Could not discover the driver download hash!

The NVIDIA driver is fetched as a fixed-output download. Its hash is learned
by building once with a placeholder and reading the real hash from the
"got:" line of nix's hash-mismatch error. That line never appeared.

## Things you can try:
- Re-run with --verbose and read the build output above for the real error
  (evaluation errors, missing nixpkgs channel, network failures)
- Check that the version exists upstream
- If nix changed the wording of its hash-mismatch message, please report it`,
		docLinks: []HttpLink{"https://nix.dev/manual/nix/latest/language/advanced-attributes#adv-attr-outputHash"},
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# The driver farm failed to build!

The final, hash-pinned ` + "`nix build`" + ` exited with an error. Its full output
is shown above.

## Things you can try:
- Update your nixpkgs channel:
~~~
$ nix-channel --update
~~~
- If the cached hash is stale, inspect it:
~~~
$ nix-opengl-driver hash-store
~~~
- Print the descriptor that was built:
~~~
$ nix-opengl-driver code --resolve-hashes
~~~`,
	}

	nixNotFoundIssue = &Issue{
		id: NixNotFoundId,
		mdMsg: `
# A required program was not found!

nix-opengl-driver drives ` + "`nix`, `nix-store`, `systemctl` and `systemd-tmpfiles`" + `.

## Things you can try:
- Make sure they are on your PATH
- Or point the configuration at them:
~~~cue
tools: {
	nix:       "/nix/var/nix/profiles/default/bin/nix"
	nix_store: "/nix/var/nix/profiles/default/bin/nix-store"
}
~~~`,
	}

	gcRootFailedIssue = &Issue{
		id: GCRootFailedId,
		mdMsg: `
# Could not register the GC root!

The farm was built but could not be pinned, so the sync state was not
updated (it would otherwise point at a path the garbage collector may delete).

## Things you can try:
- Run as root; the GC-root directory is usually only writable by root:
~~~
$ sudo nix-opengl-driver sync
~~~`,
	}

	corruptStateIssue = &Issue{
		id: CorruptStateId,
		mdMsg: `
# The sync state is corrupt!

Neither state.json nor its backup could be parsed.

## Things you can try:
- Inspect them:
~~~
$ nix-opengl-driver state
~~~
- Remove both and sync again; the state is rebuilt from scratch:
~~~
$ sudo rm /var/lib/nix-opengl-driver/state.json{,.bak}
$ sudo nix-opengl-driver sync
~~~`,
	}

	corruptHashStoreIssue = &Issue{
		id: CorruptHashStoreId,
		mdMsg: `
# The hash store is corrupt!

hashmap.json exists but is not valid JSON. It is never overwritten
automatically, since it may hold hashes that took a download to learn.

## Things you can try:
- Fix the file by hand, or delete it to rediscover hashes on the next build`,
	}

	lifecycleStepFailedIssue = &Issue{
		id: LifecycleStepFailedId,
		mdMsg: `
# Installing or removing the system integration failed!

Steps that completed before the failure were kept; every step is safe to
repeat.

## Things you can try:
- Run as root
- Check the service manager:
~~~
$ systemctl status nix-opengl-driver.service
~~~
- Re-run the same command once the cause is fixed`,
		extLinks: []HttpLink{"https://www.freedesktop.org/software/systemd/man/latest/tmpfiles.d.html"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

System paths under /etc, /var/lib and /nix/var are normally writable only by
root.

## Things you can try:
- Re-run with sudo
- Or point paths at writable locations in your configuration
~~~
$ nix-opengl-driver config show
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check the file for CUE syntax errors
- Print the effective configuration and where it was read from:
~~~
$ nix-opengl-driver config path
$ nix-opengl-driver config show
~~~
- Move the file aside to fall back to the built-in defaults`,
		docLinks: []HttpLink{"https://cuelang.org/docs/tour/"},
	}

	issues = map[Id]*Issue{
		detectionFailedIssue.Id():     detectionFailedIssue,
		conflictingOverrideIssue.Id(): conflictingOverrideIssue,
		hashDiscoveryFailedIssue.Id(): hashDiscoveryFailedIssue,
		buildFailedIssue.Id():         buildFailedIssue,
		nixNotFoundIssue.Id():         nixNotFoundIssue,
		gcRootFailedIssue.Id():        gcRootFailedIssue,
		corruptStateIssue.Id():        corruptStateIssue,
		corruptHashStoreIssue.Id():    corruptHashStoreIssue,
		lifecycleStepFailedIssue.Id(): lifecycleStepFailedIssue,
		permissionDeniedIssue.Id():    permissionDeniedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
