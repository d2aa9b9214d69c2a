package links

import "os"

// writeFile is a tiny fixture helper shared by the package tests.
func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
