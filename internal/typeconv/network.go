package typeconv

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// inetCoder: storage is canonical TEXT (address/prefixlen for cidr, bare
// address for inet unless a prefix was explicitly supplied).
type inetCoder struct{ cidr bool }

func (c inetCoder) TextToStorage(text []byte) (any, error) {
	s := strings.TrimSpace(string(text))
	addr, bits, isV6, err := parseInetText(s)
	if err != nil {
		return nil, err
	}
	maxBits := 32
	if isV6 {
		maxBits = 128
	}
	if bits < 0 {
		bits = maxBits
	}
	if c.cidr || strings.Contains(s, "/") {
		return fmt.Sprintf("%s/%d", addr, bits), nil
	}
	return addr, nil
}

func parseInetText(s string) (addr string, bits int, isV6 bool, err error) {
	bits = -1
	raw := s
	if i := strings.IndexByte(s, '/'); i >= 0 {
		raw = s[:i]
		n, perr := strconv.Atoi(s[i+1:])
		if perr != nil {
			return "", 0, false, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for type inet: %q", s))
		}
		bits = n
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return "", 0, false, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for type inet: %q", s))
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String(), bits, false, nil
	}
	return ip.String(), bits, true, nil
}

func (c inetCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) < 4 {
		return nil, errUnsupportedBinary
	}
	family := bin[0]
	bits := int(bin[1])
	// bin[2] is the "is_cidr" flag, bin[3] the address length.
	addrLen := int(bin[3])
	if len(bin) < 4+addrLen {
		return nil, errUnsupportedBinary
	}
	addrBytes := bin[4 : 4+addrLen]
	ip := net.IP(addrBytes)
	isV6 := family == 3
	addr := ip.String()
	if !isV6 {
		if v4 := ip.To4(); v4 != nil {
			addr = v4.String()
		}
	}
	maxBits := 32
	if isV6 {
		maxBits = 128
	}
	if c.cidr || bits != maxBits {
		return fmt.Sprintf("%s/%d", addr, bits), nil
	}
	return addr, nil
}

func (c inetCoder) StorageToText(v any) ([]byte, error) {
	return []byte(toStringVal(v)), nil
}

func (c inetCoder) StorageToBinary(v any) ([]byte, error) {
	s := toStringVal(v)
	addr, bits, isV6, err := parseInetText(s)
	if err != nil {
		return nil, err
	}
	maxBits := 32
	family := byte(2)
	if isV6 {
		maxBits = 128
		family = 3
	}
	if bits < 0 {
		bits = maxBits
	}
	ip := net.ParseIP(addr)
	var addrBytes []byte
	if isV6 {
		addrBytes = ip.To16()
	} else {
		addrBytes = ip.To4()
	}
	isCidr := byte(0)
	if c.cidr {
		isCidr = 1
	}
	buf := []byte{family, byte(bits), isCidr, byte(len(addrBytes))}
	buf = append(buf, addrBytes...)
	return buf, nil
}

// macaddrCoder: storage is canonical lower-case colon-separated TEXT.
type macaddrCoder struct{ bytes int }

func (c macaddrCoder) TextToStorage(text []byte) (any, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(string(text)))
	if err != nil || len(hw) != c.bytes {
		return nil, pgerror.New(pgerror.InvalidTextRepresentation, fmt.Sprintf("invalid input syntax for type macaddr: %q", text))
	}
	return hw.String(), nil
}

func (c macaddrCoder) BinaryToStorage(bin []byte) (any, error) {
	if len(bin) != c.bytes {
		return nil, errUnsupportedBinary
	}
	return net.HardwareAddr(bin).String(), nil
}

func (c macaddrCoder) StorageToText(v any) ([]byte, error) {
	return []byte(toStringVal(v)), nil
}

func (c macaddrCoder) StorageToBinary(v any) ([]byte, error) {
	hw, err := net.ParseMAC(toStringVal(v))
	if err != nil {
		return nil, err
	}
	return []byte(hw), nil
}
