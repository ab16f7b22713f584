package utils

import (
	"fmt"
	"strings"

	"outreachd/models"
)

// TemplateBuilder produces outbound messages by plain token replacement on
// the campaign's subject and body template. Richer content generation is
// an external collaborator; this keeps the worker self-sufficient. It
// implements worker.MessageBuilder.
type TemplateBuilder struct{}

func NewTemplateBuilder() *TemplateBuilder {
	return &TemplateBuilder{}
}

func (tb *TemplateBuilder) Build(campaign *models.Campaign, lead *models.Lead) (string, string, error) {
	if campaign.Subject == "" || campaign.BodyTemplate == "" {
		return "", "", fmt.Errorf("campaign %d has no message template", campaign.ID)
	}

	r := strings.NewReplacer(
		"{first_name}", fallback(lead.FirstName, "there"),
		"{last_name}", lead.LastName,
		"{company}", fallback(lead.Company, "your company"),
		"{email}", lead.Email,
		"{campaign}", campaign.Name,
	)
	return r.Replace(campaign.Subject), r.Replace(campaign.BodyTemplate), nil
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
