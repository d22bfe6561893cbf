package update

import (
	"golang.org/x/sys/windows"
)

func hideFile(path string) error {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(name, windows.FILE_ATTRIBUTE_HIDDEN)
}
