//go:build nowhatsapp

package whatsapp

// Enabled reports whether WhatsApp delivery was compiled in.
const Enabled = false
