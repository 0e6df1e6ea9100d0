// Package intel is the client for the external security intelligence
// service: URL and IP reputation, embargo checks, password breach lookups
// and the audit log. Verdicts are cached in an LRU.
package intel

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/execution"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

// HarmfulScore is the reputation score above which a URL or IP is treated as malicious.
const HarmfulScore = 90

const breachPrefixLen = 5

type Config struct {
	Domain    string
	Token     string
	BaseURL   string // overrides https://<service>.<domain>, used by tests and proxies
	CacheSize int
	Timeout   time.Duration
}

type Client struct {
	cfg   Config
	http  *http.Client
	cache *lru.Cache[string, bool]
	log   *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("intel token is required")
	}
	if cfg.Domain == "" && cfg.BaseURL == "" {
		return nil, errors.New("intel domain or base url is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cache, err := lru.New[string, bool](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create intel cache: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache,
		log:   log,
	}, nil
}

var _ execution.AuditLogger = (*Client)(nil)

func (c *Client) endpoint(service, path string) string {
	if c.cfg.BaseURL != "" {
		return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + service + path
	}
	return "https://" + service + "." + c.cfg.Domain + path
}

func (c *Client) post(ctx context.Context, service, path string, body any) (gjson.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(service, path), bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("call %s: %w", service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read %s response: %w", service, err)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%s returned invalid JSON (status %d)", service, resp.StatusCode)
	}
	doc := gjson.ParseBytes(raw)
	if resp.StatusCode != http.StatusOK || doc.Get("status").String() != "Success" {
		return gjson.Result{}, fmt.Errorf("%s returned %d: %s", service, resp.StatusCode, doc.Get("summary").String())
	}
	return doc.Get("result"), nil
}

func (c *Client) cached(key string, fetch func() (bool, error)) (bool, error) {
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return false, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// URLIsSafe reports whether url's reputation score is at most HarmfulScore.
func (c *Client) URLIsSafe(ctx context.Context, url string) (bool, error) {
	return c.cached("url-reputation-"+url, func() (bool, error) {
		res, err := c.post(ctx, "url-intel", "/v1/reputation", map[string]string{"url": url, "provider": "crowdstrike"})
		if err != nil {
			return false, err
		}
		score := res.Get("data.score").Int()
		if score > HarmfulScore {
			c.log.Info("harmful url detected", zap.String("url", url), zap.Int64("score", score))
		}
		return score <= HarmfulScore, nil
	})
}

// IPIsReputable reports whether ip's reputation score is below HarmfulScore.
func (c *Client) IPIsReputable(ctx context.Context, ip string) (bool, error) {
	return c.cached("ip-reputation-"+ip, func() (bool, error) {
		res, err := c.post(ctx, "ip-intel", "/v1/reputation", map[string]string{"ip": ip, "provider": "crowdstrike"})
		if err != nil {
			return false, err
		}
		return res.Get("data.score").Int() < HarmfulScore, nil
	})
}

// IPIsEmbargoed reports whether ip geolocates to a sanctioned country.
func (c *Client) IPIsEmbargoed(ctx context.Context, ip string) (bool, error) {
	return c.cached("embargo-"+ip, func() (bool, error) {
		res, err := c.post(ctx, "embargo", "/v1/ip/check", map[string]string{"ip": ip})
		if err != nil {
			return false, err
		}
		return res.Get("sanctions.#").Int() > 0, nil
	})
}

// PasswordBreached looks the password up by the prefix of its SHA-256 hash.
// The plaintext never leaves the process.
func (c *Client) PasswordBreached(ctx context.Context, password string) (bool, error) {
	sum := sha256.Sum256([]byte(password))
	hash := hex.EncodeToString(sum[:])
	return c.cached("password-breach-"+hash, func() (bool, error) {
		res, err := c.post(ctx, "user-intel", "/v1/password/breached", map[string]string{
			"hash_type":   "sha256",
			"hash_prefix": hash[:breachPrefixLen],
			"provider":    "spycloud",
		})
		if err != nil {
			return false, err
		}
		return res.Get("data.found_in_breach").Bool(), nil
	})
}

// LogCreditChange writes one balance change to the audit log.
func (c *Client) LogCreditChange(ctx context.Context, args execution.AuditCreditArgs) error {
	event := map[string]string{
		"action":    "credit_change",
		"actor":     args.UserID.String(),
		"target":    "credits",
		"old":       strconv.FormatInt(args.OldBalance, 10),
		"new":       strconv.FormatInt(args.NewBalance, 10),
		"message":   auditMessage(args.EntryKind),
		"timestamp": args.At.UTC().Format(time.RFC3339),
	}
	if args.GigID != nil {
		event["source"] = "gig:" + args.GigID.String()
	}
	_, err := c.post(ctx, "audit", "/v1/log", map[string]any{"event": event})
	return err
}

func auditMessage(kind string) string {
	switch kind {
	case models.LedgerKindTopUp:
		return "User bought credits"
	case models.LedgerKindWithdrawal:
		return "User withdrew credits"
	case models.LedgerKindCreditSettlement:
		return "User was rewarded with credits"
	case models.LedgerKindRefund:
		return "User was refunded credits"
	case models.LedgerKindDebitEscrow:
		return "User escrowed credits for a gig"
	default:
		return "User credits changed"
	}
}

// Offline stands in for the client when no intel token is configured:
// everything is safe, nothing is breached, audit events are only logged.
type Offline struct {
	Log *zap.Logger
}

func (Offline) URLIsSafe(context.Context, string) (bool, error)        { return true, nil }
func (Offline) IPIsReputable(context.Context, string) (bool, error)    { return true, nil }
func (Offline) IPIsEmbargoed(context.Context, string) (bool, error)    { return false, nil }
func (Offline) PasswordBreached(context.Context, string) (bool, error) { return false, nil }

func (o Offline) LogCreditChange(_ context.Context, args execution.AuditCreditArgs) error {
	if o.Log != nil {
		o.Log.Info("audit event (offline)",
			zap.String("user_id", args.UserID.String()),
			zap.String("kind", args.EntryKind),
			zap.Int64("old", args.OldBalance),
			zap.Int64("new", args.NewBalance),
		)
	}
	return nil
}
