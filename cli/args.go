package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// normalizeArgs rewrites gflags style arguments into the form go-flags
// understands. Known flags may be given with one or two dashes, booleans
// accept an explicit "=true"/"=false" and the "-noname" negation. The last
// occurrence of a boolean decides its value.
func normalizeArgs(args []string) ([]string, error) {
	known := specIndex()
	bools := make(map[string]bool)
	out := make([]string, 0, len(args))
	var tail []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			tail = args[i:]
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			out = append(out, arg)
			continue
		}

		name := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
		value, hasValue := "", false
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name, value, hasValue = name[:eq], name[eq+1:], true
		}

		spec, ok := known[name]
		if !ok {
			// -noname clears a boolean flag.
			if base, isNeg := strings.CutPrefix(name, "no"); isNeg && !hasValue && known[base].Bool {
				bools[base] = false
				continue
			}
			out = append(out, arg)
			continue
		}

		if spec.Bool {
			b := true
			if hasValue {
				var err error
				if b, err = strconv.ParseBool(value); err != nil {
					return nil, fmt.Errorf("invalid value %q for flag -%s", value, name)
				}
			}
			bools[name] = b
			continue
		}

		if hasValue {
			out = append(out, "--"+name+"="+value)
			continue
		}
		// The value is taken verbatim, even when it starts with a dash.
		if i+1 < len(args) {
			i++
			out = append(out, "--"+name+"="+args[i])
			continue
		}
		out = append(out, "--"+name)
	}

	for _, s := range specs() {
		if bools[s.Name] {
			out = append(out, "--"+s.Name)
		}
	}
	return append(out, tail...), nil
}
