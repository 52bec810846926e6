package lib

import (
	"fmt"
	"strings"
)

// DropAllInterfaces is the sentinel interface argument of the "drop"
// command meaning "every Mapping, regardless of interface".
const DropAllInterfaces = "--all"

// MaxBatchBytes is the largest batch write ApplyBatch accepts in one call.
const MaxBatchBytes = 1 << 20

// BatchResult tallies a batch control-plane run. Processed counts each
// successful add or del line plus, for each drop line, the number of
// Mappings it removed; Errors counts rejected lines. A single malformed
// line never aborts the remaining lines.
type BatchResult struct {
	Processed int
	Errors    int
	// Messages holds one diagnostic per failed line, in input order.
	Messages []string
}

// ApplyLine executes one control-plane command line against t: "add
// <interface> <internal_prefix/len> <external_prefix/len>", "del
// <interface> <internal_prefix/len>", or "drop <interface|--all>".
func ApplyLine(t *MappingTable, line string) error {
	op, err := parseLine(line)
	if err != nil {
		return err
	}
	return applyOperation(t, op)
}

// ApplyBatch executes a newline-delimited sequence of control-plane
// commands, one per line, blank lines and lines starting with "#" ignored.
// Every line is attempted independently; a malformed or rejected line is
// counted as an error without aborting the remaining lines.
func ApplyBatch(t *MappingTable, text string) BatchResult {
	var result BatchResult
	if len(text) > MaxBatchBytes {
		result.Errors = 1
		result.Messages = append(result.Messages,
			fmt.Sprintf("%v: batch of %d bytes exceeds the %d-byte limit", ErrInvalid, len(text), MaxBatchBytes))
		return result
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		op, err := parseLine(trimmed)
		if err != nil {
			result.Errors++
			result.Messages = append(result.Messages, err.Error())
			continue
		}

		if op.command == "drop" {
			var n int
			if op.interfaceName == DropAllInterfaces {
				n = t.DropAll()
			} else {
				n = t.Drop(op.interfaceName)
			}
			result.Processed += n
			continue
		}

		if err := applyOperation(t, op); err != nil {
			result.Errors++
			result.Messages = append(result.Messages, err.Error())
			continue
		}
		result.Processed++
	}
	return result
}

// controlOperation is the parsed shape of one control-plane command line.
type controlOperation struct {
	command        string
	interfaceName  string
	internalPrefix string
	externalPrefix string
}

// parseLine splits a command line into its operation, interface, and
// prefix arguments: the operation word, then whitespace-separated arguments
// specific to each operation.
func parseLine(line string) (controlOperation, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return controlOperation{}, fmt.Errorf("%w: %q: expected at least a command and an interface", ErrInvalid, line)
	}

	op := controlOperation{command: fields[0], interfaceName: fields[1]}
	switch op.command {
	case "add":
		if len(fields) != 4 {
			return controlOperation{}, fmt.Errorf("%w: add requires <interface> <internal/len> <external/len>", ErrInvalid)
		}
		op.internalPrefix = fields[2]
		op.externalPrefix = fields[3]
	case "del":
		if len(fields) != 3 {
			return controlOperation{}, fmt.Errorf("%w: del requires <interface> <internal/len>", ErrInvalid)
		}
		op.internalPrefix = fields[2]
	case "drop":
		if len(fields) != 2 {
			return controlOperation{}, fmt.Errorf("%w: drop requires <interface|%s>", ErrInvalid, DropAllInterfaces)
		}
	default:
		return controlOperation{}, fmt.Errorf("%w: unrecognized command %q", ErrInvalid, op.command)
	}
	return op, nil
}

// applyOperation executes a single parsed add/del/drop operation. drop is
// handled separately by ApplyBatch so its count of removed Mappings can be
// tallied; ApplyLine routes it here too, discarding that count.
func applyOperation(t *MappingTable, op controlOperation) error {
	switch op.command {
	case "add":
		internalAddr, internalLen, err := ParsePrefix(op.internalPrefix)
		if err != nil {
			return err
		}
		externalAddr, externalLen, err := ParsePrefix(op.externalPrefix)
		if err != nil {
			return err
		}
		return t.Add(op.interfaceName, internalAddr, internalLen, externalAddr, externalLen)

	case "del":
		internalAddr, internalLen, err := ParsePrefix(op.internalPrefix)
		if err != nil {
			return err
		}
		return t.Remove(op.interfaceName, internalAddr, internalLen)

	case "drop":
		if op.interfaceName == DropAllInterfaces {
			t.DropAll()
		} else {
			t.Drop(op.interfaceName)
		}
		return nil

	default:
		return fmt.Errorf("%w: unrecognized command %q", ErrInvalid, op.command)
	}
}

// FormatMappingList renders mappings one per line, "<interface>
// <internal>/<len> -> <external>/<len>", preceded by a short header comment.
func FormatMappingList(mappings []Mapping) string {
	var b strings.Builder
	b.WriteString("# IPv6 NAT Mappings\n")
	b.WriteString("# Format: interface internal_prefix/len -> external_prefix/len\n\n")
	for _, m := range mappings {
		fmt.Fprintf(&b, "%s %s -> %s\n",
			m.Interface,
			FormatPrefix(m.InternalPrefix, m.PrefixLen),
			FormatPrefix(m.ExternalPrefix, m.PrefixLen))
	}
	return b.String()
}

// BatchUsage renders the batch protocol's help text.
func BatchUsage() string {
	return strings.Join([]string{
		"# Batch control interface",
		"# Write batch operations, one per line:",
		"#   add <interface> <internal_prefix/len> <external_prefix/len>",
		"#   del <interface> <internal_prefix/len>",
		"#   drop <interface>    - drop all mappings for interface",
		"#   drop " + DropAllInterfaces + "         - drop all mappings",
		"# Lines starting with # are ignored",
		"",
	}, "\n")
}
