package zedupdate

// osHints returns the words release assets use to name goos.
func osHints(goos string) []string {
	switch goos {
	case "windows":
		return []string{"windows", "win", "win64", "win32"}
	case "darwin":
		return []string{"darwin", "macos", "mac", "osx"}
	case "":
		return nil
	}
	return []string{goos}
}

// archHints returns the words release assets use to name arch, most precise first.
// universalArch (e.g. "universal" for macOS fat binaries) is added last.
func archHints(arch string, universalArch string) []string {
	const defaultArchCapacity = 4
	hints := make([]string, 0, defaultArchCapacity)

	switch arch {
	case "amd64":
		hints = append(hints, "amd64", "x86_64", "x64")
	case "arm64":
		hints = append(hints, "arm64", "aarch64")
	case "386":
		hints = append(hints, "386", "i386", "x86")
	case "":
	default:
		hints = append(hints, arch)
	}
	if universalArch != "" {
		hints = append(hints, universalArch)
	}
	return hints
}

// nativeExecutableExt is the extension of a raw executable asset on goos.
func nativeExecutableExt(goos string) string {
	if goos == "windows" {
		return ".exe"
	}
	return ""
}
