package runner

import (
	"bytes"
	"io"

	"github.com/dimiro1/banner"
)

const Version = "dev"

// PrintBanner writes the startup banner to w. Callers pass stderr so stdout stays
// reserved for recognition output.
func PrintBanner(w io.Writer, color bool) {
	tpl := "{{ .Title \"VOSKSTREAM\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(w, true, color, bytes.NewBufferString(tpl))
}
