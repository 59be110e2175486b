package cli

import (
	"fmt"
	"io"
)

// ProgramName is the name shown on the usage screen.
const ProgramName = "car_detection_tutorial"

// descColumn is where descriptions start on the usage screen.
const descColumn = 31

// usageLine is one row of the usage screen. An empty name is a bare
// separator such as "Or".
type usageLine struct {
	indent string
	name   string
	text   string
}

// usageLayout fixes the order of the usage screen. The custom kernel
// flags are nested under the model flags as alternatives.
var usageLayout = []usageLine{
	{indent: "    ", name: "h"},
	{indent: "    ", name: "i"},
	{indent: "    ", name: "m"},
	{indent: "    ", name: "m_va"},
	{indent: "      ", name: "l"},
	{indent: "          ", text: "Or"},
	{indent: "      ", name: "c"},
	{indent: "    ", name: "d"},
	{indent: "    ", name: "n"},
	{indent: "    ", name: "d_va"},
	{indent: "    ", name: "n_va"},
	{indent: "    ", name: "dyn_va"},
	{indent: "    ", name: "n_async"},
	{indent: "    ", name: "auto_resize"},
	{indent: "    ", name: "no_wait"},
	{indent: "    ", name: "no_show"},
	{indent: "    ", name: "pc"},
	{indent: "    ", name: "r"},
	{indent: "    ", name: "t"},
}

// ShowUsage writes the help screen to w.
func ShowUsage(w io.Writer) {
	known := specIndex()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s [OPTION]\n", ProgramName)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w)
	for _, l := range usageLayout {
		if l.name == "" {
			fmt.Fprintln(w, l.indent+l.text)
			continue
		}
		s := known[l.name]
		flag := l.indent + "-" + s.Name
		if p := s.placeholder(); p != "" {
			flag += " " + p
		}
		fmt.Fprintf(w, "%-*s%s\n", descColumn, flag, s.Description)
	}
}
