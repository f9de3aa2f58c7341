package payment

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nursace/storefront/internal/config"
	"github.com/nursace/storefront/internal/core/domain"
	"github.com/nursace/storefront/internal/port"
)

const initScriptName = "init_payment.php"

// FreedomPay builds signed init_payment requests and verifies the signature
// of inbound callbacks. All settings come from the injected config; nothing
// here reads the environment.
type FreedomPay struct {
	cfg    config.PaymentConfig
	client *http.Client
}

func New(cfg config.PaymentConfig) *FreedomPay {
	return &FreedomPay{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type initResponse struct {
	XMLName     xml.Name `xml:"response"`
	Status      string   `xml:"pg_status"`
	RedirectURL string   `xml:"pg_redirect_url"`
	ErrorDesc   string   `xml:"pg_error_description"`
}

func (f *FreedomPay) InitPayment(ctx context.Context, req port.PaymentInit) (string, error) {
	params := map[string]string{
		"pg_order_id":    strconv.FormatInt(req.OrderID, 10),
		"pg_merchant_id": f.cfg.MerchantID,
		"pg_amount":      req.Amount.StringFixed(2),
		"pg_description": req.Description,
		"pg_salt":        uuid.NewString(),
		"pg_currency":    f.cfg.Currency,
		"pg_check_url":   f.cfg.CheckURL,
		"pg_result_url":  f.cfg.ResultURL,
		"pg_success_url": f.cfg.SuccessURL,
		"pg_failure_url": f.cfg.FailureURL,
	}
	if f.cfg.TestingMode {
		params["pg_testing_mode"] = "1"
	}
	if req.UserPhone != "" {
		params["pg_user_phone"] = req.UserPhone
	}
	if req.UserEmail != "" {
		params["pg_user_contact_email"] = req.UserEmail
	}
	params["pg_sig"] = sign(initScriptName, params, f.cfg.SecretKey)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build init_payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gateway response: %w", err)
	}

	var parsed initResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse gateway response: %w", err)
	}
	if parsed.Status != "ok" {
		return "", fmt.Errorf("%w: %s", domain.ErrGatewayRejected, parsed.ErrorDesc)
	}
	return parsed.RedirectURL, nil
}

// VerifyCallback recomputes pg_sig over the received parameters. The outbound
// path has always been signed; the inbound one is verified here as well so a
// forged result_code cannot flip an order.
func (f *FreedomPay) VerifyCallback(scriptName string, form url.Values) bool {
	got := form.Get("pg_sig")
	if got == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k := range form {
		if k == "pg_sig" {
			continue
		}
		params[k] = form.Get(k)
	}
	return sign(scriptName, params, f.cfg.SecretKey) == got
}

// sign computes MD5 over the script name, the parameter values ordered by
// key, and the shared secret, joined by semicolons.
func sign(scriptName string, params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+2)
	parts = append(parts, scriptName)
	for _, k := range keys {
		parts = append(parts, params[k])
	}
	parts = append(parts, secret)

	sum := md5.Sum([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}
