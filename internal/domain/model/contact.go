package model

import "strings"

// Contact is an identity record resolved from the CRM.
type Contact struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Tags      []string
	Profile   Profile
}

// HasTag reports whether the contact carries the given CRM tag.
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Name returns the contact's display name.
func (c *Contact) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Profile is the affiliate data snapshot returned to the portal.
// Values are passed through from CRM custom fields as-is.
type Profile struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	AffiliateCode    string `json:"affiliateCode"`
	TotalReferrals   string `json:"totalReferrals"`
	ActiveReferrals  string `json:"activeReferrals"`
	TotalEarned      string `json:"totalEarned"`
	PendingPayout    string `json:"pendingPayout"`
	PaypalEmail      string `json:"paypalEmail"`
	Tier             string `json:"tier"`
	LastPayoutDate   string `json:"lastPayoutDate"`
	LastPayoutAmount string `json:"lastPayoutAmount"`
}
