package services

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var emailTemplates embed.FS

const (
	accentPrimary = template.CSS("linear-gradient(135deg, #667eea 0%, #764ba2 100%)")
	accentSuccess = template.CSS("linear-gradient(135deg, #10b981 0%, #059669 100%)")
	accentFailure = template.CSS("linear-gradient(135deg, #ef4444 0%, #dc2626 100%)")
)

type emailView struct {
	Heading        string
	Accent         template.CSS
	ActionURL      string
	ActionLabel    string
	Year           int
	IPO            *models.IPO
	Application    *models.Application
	CloseDate      string
	Allotted       bool
	AllotmentLabel string
}

// NotificationComposer renders notification tasks into HTML emails with a plain-text part.
type NotificationComposer struct {
	templates *template.Template
	baseURL   string
	utility   *UtilityService
}

func NewNotificationComposer(baseURL string, utility *UtilityService) (*NotificationComposer, error) {
	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"rupees": FormatRupees,
	}).ParseFS(emailTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	if utility == nil {
		utility = NewUtilityService()
	}
	return &NotificationComposer{
		templates: tmpl,
		baseURL:   strings.TrimRight(baseURL, "/"),
		utility:   utility,
	}, nil
}

// Compose builds the message for task. IPO is required for every kind; Application is
// required for confirmation and allotment results.
func (c *NotificationComposer) Compose(task *models.NotificationTask) (*models.EmailMessage, error) {
	if task == nil || task.IPO == nil {
		return nil, fmt.Errorf("notification task is missing its IPO")
	}
	if task.Recipient == "" {
		return nil, fmt.Errorf("notification task %s has no recipient", task.ID)
	}

	view := emailView{
		Year:        task.CreatedAt.Year(),
		IPO:         task.IPO,
		Application: task.Application,
		ActionURL:   c.baseURL + "/dashboard.html",
		ActionLabel: "View Dashboard",
	}
	if view.Year <= 1 {
		view.Year = time.Now().Year()
	}

	var subject string
	switch task.Kind {
	case models.KindApplicationConfirmation:
		if task.Application == nil {
			return nil, fmt.Errorf("confirmation task %s has no application", task.ID)
		}
		subject = fmt.Sprintf("IPO Application Confirmation - %s", task.IPO.Name)
		view.Heading = "IPO Application Confirmed!"
		view.Accent = accentPrimary

	case models.KindIPOOpening:
		subject = fmt.Sprintf("🔔 IPO Alert: %s is Now Open!", task.IPO.Name)
		view.Heading = "🔔 IPO Now Open!"
		view.Accent = accentSuccess
		view.ActionURL = fmt.Sprintf("%s/ipo-detail.html?id=%d", c.baseURL, task.IPO.ID)
		view.ActionLabel = "Apply Now"
		view.CloseDate = c.utility.FormatDisplayDate(task.IPO.CloseDate)

	case models.KindAllotmentResult:
		if task.Application == nil {
			return nil, fmt.Errorf("allotment task %s has no application", task.ID)
		}
		view.Allotted = task.Application.SharesAllotted > 0
		view.AllotmentLabel = "PENDING"
		if task.Application.AllotmentStatus != nil {
			view.AllotmentLabel = strings.ToUpper(string(*task.Application.AllotmentStatus))
		}
		if view.Allotted {
			subject = fmt.Sprintf("🎉 Congratulations! %s IPO Allotment", task.IPO.Name)
			view.Heading = "🎉 Congratulations!"
			view.Accent = accentSuccess
		} else {
			subject = fmt.Sprintf("%s IPO Allotment Status", task.IPO.Name)
			view.Heading = "Allotment Status"
			view.Accent = accentFailure
		}

	default:
		return nil, fmt.Errorf("unknown notification kind %q", task.Kind)
	}

	var body bytes.Buffer
	if err := c.templates.ExecuteTemplate(&body, string(task.Kind), view); err != nil {
		return nil, fmt.Errorf("failed to render %s email: %w", task.Kind, err)
	}

	text, err := c.plainText(body.String())
	if err != nil {
		return nil, err
	}

	return &models.EmailMessage{
		To:       task.Recipient,
		Subject:  subject,
		HTMLBody: body.String(),
		TextBody: text,
	}, nil
}

// plainText flattens rendered HTML into one line per block element.
func (c *NotificationComposer) plainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse rendered email: %w", err)
	}

	var lines []string
	doc.Find("h1, h3, p, li, tr, a").Each(func(_ int, s *goquery.Selection) {
		if s.Is("tr") {
			var cells []string
			s.Find("td").Each(func(_ int, td *goquery.Selection) {
				cells = append(cells, c.utility.CleanText(td.Text()))
			})
			lines = append(lines, strings.Join(cells, " "))
			return
		}
		if s.Is("a") {
			href, _ := s.Attr("href")
			lines = append(lines, fmt.Sprintf("%s: %s", c.utility.CleanText(s.Text()), href))
			return
		}
		if s.Is("li") {
			lines = append(lines, "- "+c.utility.CleanText(s.Text()))
			return
		}
		if text := c.utility.CleanText(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n"), nil
}

// FormatRupees renders an amount with Indian digit grouping (12,34,567.5), dropping a zero fraction.
func FormatRupees(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	negative := d.IsNegative()
	d = d.Abs()

	whole := d.Truncate(0).String()
	fraction := strings.TrimRight(strings.TrimPrefix(d.Sub(d.Truncate(0)).StringFixed(2), "0."), "0")

	var grouped string
	if len(whole) <= 3 {
		grouped = whole
	} else {
		head, tail := whole[:len(whole)-3], whole[len(whole)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	if fraction != "" {
		grouped += "." + fraction
	}
	if negative {
		grouped = "-" + grouped
	}
	return grouped
}
