package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
)

// Client talks to the GoHighLevel REST API. It is the system of record for
// contact identity, the affiliate-active authorization tag, profile fields,
// and outbound email. Results are never cached; authorization can change
// between calls and every flow re-resolves it live.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	locationID string
}

const apiVersion = "2021-07-28"

// AffiliateActiveTag marks contacts allowed into the portal.
const AffiliateActiveTag = "affiliate-active"

var ErrContactNotFound = errors.New("contact not found")

// GHL custom field IDs holding the affiliate profile.
const (
	fieldAffiliateCode    = "6vixXMn6Co7zax0Z26o8"
	fieldTotalReferrals   = "gsv2PY19XMQD02YkmTbL"
	fieldActiveReferrals  = "2ZCLdH0fBsHBu859Wg21"
	fieldTotalEarned      = "Em7ZiyRxaaXHxZMrmjdQ"
	fieldPendingPayout    = "77WSt5Jt6iVnpqNVfODY"
	fieldPaypalEmail      = "eEGPT1Bzyni2KnRBtMk2"
	fieldTier             = "qVmpqD8spvnEz5HA4Xf4"
	fieldLastPayoutDate   = "YgMuqf72R9YFYu5q8m8S"
	fieldLastPayoutAmount = "A7Xhmqd5fFJi1Lwa4lFU"
)

func New(baseURL, apiKey, locationID string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		locationID: locationID,
	}
}

type customField struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type contactPayload struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Tags         []string      `json:"tags"`
	CustomFields []customField `json:"customFields"`
}

func (p *contactPayload) fieldValue(fieldID string) string {
	for _, f := range p.CustomFields {
		if f.ID == fieldID {
			return f.Value
		}
	}
	return ""
}

func (p *contactPayload) toContact() *model.Contact {
	c := &model.Contact{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Tags:      p.Tags,
	}

	c.Profile = model.Profile{
		Name:             c.Name(),
		Email:            p.Email,
		AffiliateCode:    p.fieldValue(fieldAffiliateCode),
		TotalReferrals:   p.fieldValue(fieldTotalReferrals),
		ActiveReferrals:  p.fieldValue(fieldActiveReferrals),
		TotalEarned:      p.fieldValue(fieldTotalEarned),
		PendingPayout:    p.fieldValue(fieldPendingPayout),
		PaypalEmail:      p.fieldValue(fieldPaypalEmail),
		Tier:             p.fieldValue(fieldTier),
		LastPayoutDate:   p.fieldValue(fieldLastPayoutDate),
		LastPayoutAmount: p.fieldValue(fieldLastPayoutAmount),
	}

	return c
}

// ContactByEmail resolves a normalized email to a contact. The search
// endpoint matches loosely, so the exact email is re-checked against each
// returned contact.
func (c *Client) ContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	const op = "crm.ContactByEmail"

	endpoint := fmt.Sprintf("/contacts/?locationId=%s&query=%s",
		url.QueryEscape(c.locationID),
		url.QueryEscape(email),
	)

	var result struct {
		Contacts []contactPayload `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range result.Contacts {
		if strings.EqualFold(result.Contacts[i].Email, email) && result.Contacts[i].ID != "" {
			return result.Contacts[i].toContact(), nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, ErrContactNotFound)
}

// ContactByID fetches a single contact by its CRM identifier.
func (c *Client) ContactByID(ctx context.Context, id string) (*model.Contact, error) {
	const op = "crm.ContactByID"

	var result struct {
		Contact contactPayload `json:"contact"`
	}
	if err := c.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if result.Contact.ID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrContactNotFound)
	}

	return result.Contact.toContact(), nil
}

// SendMagicLink emails the login link to the contact through the CRM's
// conversations channel.
func (c *Client) SendMagicLink(ctx context.Context, contact *model.Contact, linkURL string) error {
	const op = "crm.SendMagicLink"

	html, err := renderMagicLinkEmail(contact.FirstName, linkURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body := map[string]string{
		"type":      "Email",
		"contactId": contact.ID,
		"subject":   "Your Apex Automation Login Link",
		"html":      html,
	}

	if err := c.do(ctx, http.MethodPost, "/conversations/messages", body, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s %s", resp.StatusCode, method, endpoint)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
