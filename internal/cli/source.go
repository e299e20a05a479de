package cli

import (
	"bufio"
	"os"
	"strings"
)

// SourceLine reads line (1-indexed) of file. Tabs are expanded to single
// spaces so column pointers stay aligned.
func SourceLine(file string, line int) (string, bool) {
	if file == "" || line < 1 {
		return "", false
	}
	f, err := os.Open(file)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		if n == line {
			return strings.ReplaceAll(scanner.Text(), "\t", " "), true
		}
	}
	return "", false
}
