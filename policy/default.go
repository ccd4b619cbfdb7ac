package policy

// defaultPolicy is the built-in protection policy. It refuses removal of
// packages the system cannot live without and of anything the operator
// listed as protected, and warns on kernel downgrades instead of blocking
// them.
const defaultPolicy = `package aptrewind

essential := {"dpkg", "apt", "libc6", "bash", "coreutils", "systemd"}

deny contains msg if {
	input.action.kind == "remove-completely"
	input.action.package in essential
	msg := sprintf("refusing to remove essential package %s", [input.action.package])
}

deny contains msg if {
	input.action.package in input.protected
	msg := sprintf("package %s is protected by configuration", [input.action.package])
}

warn contains msg if {
	input.action.kind == "install-version"
	startswith(input.action.package, "linux-image-")
	msg := sprintf("rolling back kernel package %s; keep the current kernel installed until the new one boots", [input.action.package])
}
`
