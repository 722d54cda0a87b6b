package domain

import "strings"

// TicketType describes one configured request category for a tenant.
type TicketType struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Emoji      string `json:"emoji,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
}

// DefaultTypeKey is the fallback type used when a requested key does not
// resolve against the tenant's registry.
const DefaultTypeKey = "default"

// TenantConfig holds per-tenant ticketing settings.
type TenantConfig struct {
	TenantID           string
	Enabled            bool
	CooldownSeconds    int
	MaxOpenPerUser     int
	NamingScheme       string
	TicketTypes        []TicketType
	BlacklistedUserIDs []string
	SupportRoleIDs     []string
	LogChannelID       string
	DMNotifications    bool
	AutoCloseHours     int
	TicketSeq          int64
	APIKeyHash         string
}

// ResolveType returns the ticket type for key, falling back to the
// configured default type. The second result is false when neither
// resolves.
func (c *TenantConfig) ResolveType(key string) (TicketType, bool) {
	if t, ok := c.lookupType(key); ok {
		return t, true
	}
	return c.lookupType(DefaultTypeKey)
}

func (c *TenantConfig) lookupType(key string) (TicketType, bool) {
	for _, t := range c.TicketTypes {
		if strings.EqualFold(t.Key, key) {
			return t, true
		}
	}
	return TicketType{}, false
}

// Blacklisted reports whether the user may not open tickets for this
// tenant.
func (c *TenantConfig) Blacklisted(userID string) bool {
	for _, id := range c.BlacklistedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
