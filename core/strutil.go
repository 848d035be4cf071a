package core

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	negative := n < 0
	if negative {
		n = -n
	}
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// hex32 formats v as 0x-prefixed lowercase hex
func hex32(v uint32) string {
	const digits = "0123456789abcdef"
	var buf [10]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = digits[v&0xF]
		v >>= 4
		if v == 0 {
			break
		}
	}
	pos--
	buf[pos] = 'x'
	pos--
	buf[pos] = '0'
	return string(buf[pos:])
}

// valueToString converts a dictionary constant to its string form
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int32:
		return itoa(int(val))
	case uint32:
		return itoa(int(val))
	case uint8:
		return itoa(int(val))
	default:
		return ""
	}
}
