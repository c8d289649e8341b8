package orders

// MaskCustomer returns the projection of a customer that is safe for
// public order-tracking reads.
func MaskCustomer(c Customer) Customer {
	return Customer{
		Name:  MaskName(c.Name),
		Phone: MaskPhone(c.Phone),
	}
}

// MaskName keeps the first character and masks the rest.
func MaskName(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return ""
	}
	return string(runes[0]) + "**"
}

// MaskPhone keeps the first three and last two digits. Strings of four or
// fewer characters are masked entirely.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "***"
	}
	return phone[:3] + "****" + phone[len(phone)-2:]
}
