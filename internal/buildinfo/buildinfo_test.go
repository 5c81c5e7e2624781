package buildinfo

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	t.Parallel()
	if Info.Name() != Name {
		t.Errorf("name, got: %v, expected: %v", Info.Name(), Name)
	}
	if Info.Tag() == "" {
		t.Errorf("tag must not be empty")
	}
	if !strings.HasPrefix(Info.Print(), Name) {
		t.Errorf("version report must start with the program name, got: %v", Info.Print())
	}
}
