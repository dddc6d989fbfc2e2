package sendgrid

import (
	"encoding/base64"
	"fmt"
	"strings"
)

type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// InlineImage is embedded in the HTML body and referenced as cid:<ContentID>.
type InlineImage struct {
	ContentID string
	Filename  string
	PNG       []byte
}

// Message is one logical mail. Each recipient gets a separate
// personalization, so nobody sees the other addresses.
type Message struct {
	From       Address
	ReplyTo    *Address
	Recipients []Address
	Subject    string
	Text       string
	HTML       string
	Inline     []InlineImage
	// Category tags the send for SendGrid's stats views.
	Category string
	// Args are copied onto every personalization as custom_args.
	Args map[string]string
}

type Receipt struct {
	StatusCode int
	MessageID  string
}

type payload struct {
	Personalizations []personalization `json:"personalizations"`
	From             Address           `json:"from"`
	ReplyTo          *Address          `json:"reply_to,omitempty"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
	Categories       []string          `json:"categories,omitempty"`
	Attachments      []attachment      `json:"attachments,omitempty"`
}

type personalization struct {
	To         []Address         `json:"to"`
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type attachment struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
	ContentID   string `json:"content_id"`
}

func (m Message) payload(defaultFrom Address) (*payload, error) {
	from := Address{Email: strings.TrimSpace(m.From.Email), Name: strings.TrimSpace(m.From.Name)}
	if from.Email == "" {
		from = defaultFrom
	}
	if from.Email == "" {
		return nil, fmt.Errorf("sendgrid: sender address required")
	}
	if len(m.Recipients) == 0 {
		return nil, fmt.Errorf("sendgrid: at least one recipient required")
	}
	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		return nil, fmt.Errorf("sendgrid: subject required")
	}

	p := &payload{From: from, ReplyTo: m.ReplyTo, Subject: subject}
	if t := strings.TrimSpace(m.Text); t != "" {
		p.Content = append(p.Content, content{Type: "text/plain", Value: t})
	}
	if h := strings.TrimSpace(m.HTML); h != "" {
		p.Content = append(p.Content, content{Type: "text/html", Value: h})
	}
	if len(p.Content) == 0 {
		return nil, fmt.Errorf("sendgrid: text or html body required")
	}
	if c := strings.TrimSpace(m.Category); c != "" {
		p.Categories = []string{c}
	}

	for _, r := range m.Recipients {
		p.Personalizations = append(p.Personalizations, personalization{
			To:         []Address{r},
			CustomArgs: m.Args,
		})
	}
	for _, img := range m.Inline {
		if img.ContentID == "" || len(img.PNG) == 0 {
			return nil, fmt.Errorf("sendgrid: inline image needs a content id and data")
		}
		name := img.Filename
		if name == "" {
			name = img.ContentID + ".png"
		}
		p.Attachments = append(p.Attachments, attachment{
			Content:     base64.StdEncoding.EncodeToString(img.PNG),
			Type:        "image/png",
			Filename:    name,
			Disposition: "inline",
			ContentID:   img.ContentID,
		})
	}
	return p, nil
}
