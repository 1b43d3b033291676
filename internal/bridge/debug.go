package bridge

// DumpInternalState returns the gpsd version string cached by the engine, or
// an empty string before gpsd has reported one.
func (b *Bridge) DumpInternalState() string {
	if b.eng == nil {
		return ""
	}
	s, _ := b.eng.versionSnap.Load().(string)
	return s
}

// CopyTruncated copies s into dst as a NUL-terminated string, truncating it
// to len(dst)-1 bytes if needed. It returns len(s) whether or not s was
// truncated, so a return value >= len(dst) means dst was too small.
func CopyTruncated(dst []byte, s string) int {
	if len(dst) > 0 {
		n := copy(dst[:len(dst)-1], s)
		dst[n] = 0
	}
	return len(s)
}
