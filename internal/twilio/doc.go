// Package twilio implements the provider-facing webhook protocol:
// request signature verification, payload normalization, and the XML
// acknowledgment documents returned to the provider.
package twilio
