package logging

// MaskSecret renders a credential safe for log output. The first and last two
// characters survive with a fixed-width mask in between; values of four
// characters or fewer are masked entirely.
func MaskSecret(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + "***" + value[len(value)-2:]
}
