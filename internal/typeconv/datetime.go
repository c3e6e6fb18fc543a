package typeconv

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// pgEpoch is postgres's binary-format epoch (2000-01-01), used only for the
// binary wire format; storage always uses the Unix epoch per spec.md §4.2.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const microsPerDay = 24 * 60 * 60 * 1000000

// dateCoder: storage is INTEGER days since Unix epoch.
type dateCoder struct{}

func (dateCoder) TextToStorage(text []byte) (any, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(string(text)))
	if err != nil {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for type date: %q", text))
	}
	days := t.Unix() / 86400
	return days, nil
}

func (dateCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) != 4 {
		return nil, errUnsupportedBinary
	}
	pgDays := int32(binary.BigEndian.Uint32(bin))
	unixDays := int64(pgDays) + daysBetween(pgEpoch, time.Unix(0, 0).UTC())*-1
	return unixDays, nil
}

func (dateCoder) StorageToText(v any) ([]byte, error) {
	days := toInt64(v)
	t := time.Unix(days*86400, 0).UTC()
	return []byte(t.Format("2006-01-02")), nil
}

func (dateCoder) StorageToBinary(v any) ([]byte, error) {
	days := toInt64(v)
	pgDays := days - daysBetween(time.Unix(0, 0).UTC(), pgEpoch)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(int32(pgDays)))
	return buf, nil
}

func daysBetween(a, b time.Time) int64 {
	return int64(b.Sub(a).Hours() / 24)
}

// timeCoder: storage is INTEGER microseconds since midnight.
type timeCoder struct{ withZone bool }

func (c timeCoder) TextToStorage(text []byte) (any, error) {
	s := strings.TrimSpace(string(text))
	layouts := []string{"15:04:05.999999", "15:04:05", "15:04:05.999999Z07:00", "15:04:05Z07:00"}
	var t time.Time
	var err error
	for _, layout := range layouts {
		t, err = time.Parse(layout, s)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for type time: %q", text))
	}
	us := (int64(t.Hour())*3600+int64(t.Minute())*60+int64(t.Second()))*1000000 + int64(t.Nanosecond())/1000
	return us, nil
}

func (c timeCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) != 8 {
		return nil, errUnsupportedBinary
	}
	return int64(binary.BigEndian.Uint64(bin)), nil
}

func (c timeCoder) StorageToText(v any) ([]byte, error) {
	us := toInt64(v)
	h := us / 3600000000
	rem := us % 3600000000
	m := rem / 60000000
	rem = rem % 60000000
	s := rem / 1000000
	frac := rem % 1000000
	out := fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	if frac != 0 {
		out += "." + strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	}
	return []byte(out), nil
}

func (c timeCoder) StorageToBinary(v any) ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(toInt64(v)))
	return buf, nil
}

// timestampCoder: storage is INTEGER microseconds since Unix epoch.
type timestampCoder struct{ withZone bool }

func (c timestampCoder) TextToStorage(text []byte) (any, error) {
	s := strings.TrimSpace(string(text))
	layouts := []string{
		"2006-01-02 15:04:05.999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04:05.999999Z07:00",
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	var t time.Time
	var err error
	for _, layout := range layouts {
		t, err = time.Parse(layout, s)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for type timestamp: %q", text))
	}
	return t.UnixMicro(), nil
}

func (c timestampCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) != 8 {
		return nil, errUnsupportedBinary
	}
	pgMicros := int64(binary.BigEndian.Uint64(bin))
	unixMicros := pgMicros + pgEpoch.UnixMicro()
	return unixMicros, nil
}

func (c timestampCoder) StorageToText(v any) ([]byte, error) {
	us := toInt64(v)
	t := time.UnixMicro(us).UTC()
	s := t.Format("2006-01-02 15:04:05.999999")
	if c.withZone {
		s += "+00"
	}
	return []byte(s), nil
}

func (c timestampCoder) StorageToBinary(v any) ([]byte, error) {
	us := toInt64(v)
	pgMicros := us - pgEpoch.UnixMicro()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(pgMicros))
	return buf, nil
}

// intervalCoder: storage is INTEGER microseconds (days/months folded into
// the microsecond total; see DESIGN.md for the binary round-trip caveat).
type intervalCoder struct{}

func (intervalCoder) TextToStorage(text []byte) (any, error) {
	us, err := parseIntervalText(string(text))
	if err != nil {
		return nil, err
	}
	return us, nil
}

func (intervalCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) != 16 {
		return nil, errUnsupportedBinary
	}
	us := int64(binary.BigEndian.Uint64(bin[0:8]))
	days := int32(binary.BigEndian.Uint32(bin[8:12]))
	months := int32(binary.BigEndian.Uint32(bin[12:16]))
	total := us + int64(days)*microsPerDay + int64(months)*30*microsPerDay
	return total, nil
}

func (intervalCoder) StorageToText(v any) ([]byte, error) {
	us := toInt64(v)
	neg := us < 0
	if neg {
		us = -us
	}
	h := us / 3600000000
	rem := us % 3600000000
	m := rem / 60000000
	s := float64(rem%60000000) / 1000000
	out := fmt.Sprintf("%02d:%02d:%09.6f", h, m, s)
	if neg {
		out = "-" + out
	}
	return []byte(out), nil
}

func (intervalCoder) StorageToBinary(v any) ([]byte, error) {
	us := toInt64(v)
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], uint64(us))
	binary.BigEndian.PutUint32(buf[8:12], 0)
	binary.BigEndian.PutUint32(buf[12:16], 0)
	return buf, nil
}

func parseIntervalText(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "P") {
		return parseISOInterval(s)
	}
	if strings.Contains(s, ":") {
		neg := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		parts := strings.Split(s, ":")
		if len(parts) != 3 {
			return 0, pgerror.New(pgerror.InvalidTextRepresentation, "invalid input syntax for type interval")
		}
		h, _ := strconv.ParseInt(parts[0], 10, 64)
		m, _ := strconv.ParseInt(parts[1], 10, 64)
		sec, _ := strconv.ParseFloat(parts[2], 64)
		us := h*3600000000 + m*60000000 + int64(sec*1000000)
		if neg {
			us = -us
		}
		return us, nil
	}
	return 0, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for type interval: %q", s))
}

func parseISOInterval(s string) (int64, error) {
	var total int64
	num := ""
	inTime := false
	for _, r := range s[1:] {
		switch {
		case r == 'T':
			inTime = true
		case r >= '0' && r <= '9' || r == '.':
			num += string(r)
		case r == 'Y':
			n, _ := strconv.ParseFloat(num, 64)
			total += int64(n * 365 * microsPerDay)
			num = ""
		case r == 'M' && !inTime:
			n, _ := strconv.ParseFloat(num, 64)
			total += int64(n * 30 * microsPerDay)
			num = ""
		case r == 'D':
			n, _ := strconv.ParseFloat(num, 64)
			total += int64(n * microsPerDay)
			num = ""
		case r == 'H':
			n, _ := strconv.ParseFloat(num, 64)
			total += int64(n * 3600000000)
			num = ""
		case r == 'M' && inTime:
			n, _ := strconv.ParseFloat(num, 64)
			total += int64(n * 60000000)
			num = ""
		case r == 'S':
			n, _ := strconv.ParseFloat(num, 64)
			total += int64(n * 1000000)
			num = ""
		}
	}
	return total, nil
}
