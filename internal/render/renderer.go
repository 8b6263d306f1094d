package render

import (
	"bytes"
	"fmt"
	"html/template"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"receiptgen/internal/domain"
)

// Renderer resolves a brand name to an HTML template file and renders a
// receipt record into it. Brand templates live in a directory as
// <brand>.html (lower-cased) with default.html as the fallback.
type Renderer struct {
	templateDir string
	logger      *zap.Logger

	// overridable in tests; the order number is display-only and is
	// regenerated on every render
	orderNumber func() int
}

func NewRenderer(templateDir string, logger *zap.Logger) *Renderer {
	return &Renderer{
		templateDir: templateDir,
		logger:      logger,
		orderNumber: func() int { return rand.Intn(900000) + 100000 },
	}
}

// Render produces the receipt document for a record. Missing record fields
// never fail the render; every template variable has a default. Only a
// missing template resource is an error.
func (r *Renderer) Render(brandName string, record domain.ReceiptRecord) (string, error) {
	path, err := r.resolveTemplate(brandName)
	if err != nil {
		return "", err
	}

	tmpl, err := template.ParseFiles(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrTemplateNotFound, filepath.Base(path), err)
	}

	data := map[string]any{
		"name_surname":   fieldOr(record, domain.FieldNameSurname, "Unknown"),
		"email":          fieldOr(record, "email", "N/A"),
		"phone_number":   fieldOr(record, domain.FieldPhoneNumber, "N/A"),
		"BILLING1":       multiline(record[domain.FieldBillingAddress]),
		"ADDRESS1":       multiline(record[domain.FieldShippingAddress]),
		"PRODUCT_NAME":   fieldOr(record, domain.FieldProductName, "N/A"),
		"PRODUCT_PRICE":  fieldOr(record, domain.FieldPrice, "0"),
		"currency":       fieldOr(record, domain.FieldCurrency, "USD"),
		"shipping_cost":  fieldOr(record, domain.FieldShippingCost, "0"),
		"ORDER_TOTAL":    fieldOr(record, domain.FieldTotalForOrder, "0"),
		"ORDERNUMBER":    r.orderNumber(),
		"DATE":           fieldOr(record, domain.FieldOrderDate, "N/A"),
		"delivery_date":  fieldOr(record, domain.FieldDeliveryDate, "N/A"),
		"payment_method": fieldOr(record, domain.FieldPaymentMethod, "N/A"),
		"PRODUCT_IMAGE":  fieldOr(record, domain.FieldImageURL, "N/A"),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", filepath.Base(path), err)
	}

	r.logger.Debug("Receipt rendered",
		zap.String("brand", brandName),
		zap.String("template", filepath.Base(path)))
	return buf.String(), nil
}

// resolveTemplate picks the brand template when present, otherwise the
// default. Both missing is fatal for the render attempt.
func (r *Renderer) resolveTemplate(brandName string) (string, error) {
	brandFile := filepath.Join(r.templateDir, strings.ToLower(brandName)+".html")
	if _, err := os.Stat(brandFile); err == nil {
		return brandFile, nil
	}

	defaultFile := filepath.Join(r.templateDir, "default.html")
	if _, err := os.Stat(defaultFile); err != nil {
		return "", fmt.Errorf("%w: no template for brand %q and no default.html in %s",
			domain.ErrTemplateNotFound, brandName, r.templateDir)
	}
	return defaultFile, nil
}

func fieldOr(record domain.ReceiptRecord, key, def string) string {
	if v, ok := record[key]; ok && v != "" {
		return v
	}
	return def
}

// multiline splits comma-separated address lines
func multiline(s string) string {
	return strings.ReplaceAll(s, ",", "\n")
}
