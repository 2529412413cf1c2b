package finance

// Disclaimer is appended to every user-visible answer.
const Disclaimer = "This assistant provides educational information only and should not be treated as financial, tax, or investment advice. Consult a qualified professional before making decisions."

// AttachDisclaimer wraps a message with the standing disclaimer.
func AttachDisclaimer(message string) string {
	return message + "\n\n⚠️ " + Disclaimer
}
