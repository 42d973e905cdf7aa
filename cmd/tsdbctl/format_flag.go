package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sensorgrid/tsdb/format"
)

// parseFormatID parses the --format flag's human-readable spelling into a
// format.FormatID, e.g. "float32", "double2" (2 decimals), "string16",
// "int16" (raw), "int16/100" (scaled by 100), "uint24/1000".
func parseFormatID(spec string) (format.FormatID, error) {
	if spec == "float32" {
		return format.FormatFloat32, nil
	}

	if strings.HasPrefix(spec, "double") {
		n, err := strconv.Atoi(strings.TrimPrefix(spec, "double"))
		if err != nil || n < 0 || n > 6 {
			return 0, fmt.Errorf("invalid double format %q, want double0..double6", spec)
		}

		return format.FormatDoubleMin + format.FormatID(n), nil
	}

	switch spec {
	case "string8":
		return format.FormatString8, nil
	case "string16":
		return format.FormatString16, nil
	case "string32":
		return format.FormatString32, nil
	case "string64":
		return format.FormatString64, nil
	}

	family, divisorPart, _ := strings.Cut(spec, "/")

	var base format.FormatID
	switch family {
	case "int8":
		base = format.FormatInt8Base
	case "int16":
		base = format.FormatInt16Base
	case "int24":
		base = format.FormatInt24Base
	case "int32":
		base = format.FormatInt32Base
	case "int64":
		base = format.FormatInt64Base
	case "uint8":
		base = format.FormatUint8Base
	case "uint16":
		base = format.FormatUint16Base
	case "uint24":
		base = format.FormatUint24Base
	case "uint32":
		base = format.FormatUint32Base
	case "uint64":
		base = format.FormatUint64Base
	default:
		return 0, fmt.Errorf("unknown format %q", spec)
	}

	nibble := 0
	if divisorPart != "" {
		switch divisorPart {
		case "10":
			nibble = 1
		case "100":
			nibble = 2
		case "1000":
			nibble = 3
		default:
			return 0, fmt.Errorf("invalid divisor %q in format %q, want 10, 100, or 1000", divisorPart, spec)
		}
	}

	return base + format.FormatID(nibble), nil
}
