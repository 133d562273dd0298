// Package gov pulls lifelong-learning courses from the public data portal's
// standard lecture dataset (XML) and maps them into canonical courses.
package gov

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/logging"
	"github.com/JakeFAU/course-ingest/internal/metrics"
)

// ErrServiceEnvelope is returned when the API answers with its error wrapper
// or a non-success result code. Pagination stops for this source.
var ErrServiceEnvelope = errors.New("government api service error")

// Config configures the client.
type Config struct {
	BaseURL    string
	Operation  string
	ServiceKey string
	PageSize   int
	MaxPages   int
	// Region keeps only items whose road address lies in it. Empty keeps all.
	Region     string
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
}

// Client fetches and maps government course pages.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.Operation) == "" {
		return nil, fmt.Errorf("gov base url and operation are required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("gov service key is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("gov page size must be > 0")
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/xml").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{http: client, cfg: cfg, logger: logger.Named("gov"), now: time.Now}, nil
}

// Item is one lecture row of the dataset.
type Item struct {
	LectureName     string `xml:"lctreNm" json:"lctreNm"`
	Instructor      string `xml:"instrctrNm" json:"instrctrNm,omitempty"`
	EduStartDay     string `xml:"edcStartDay" json:"edcStartDay"`
	EduEndDay       string `xml:"edcEndDay" json:"edcEndDay"`
	EduStartTime    string `xml:"edcStartTime" json:"edcStartTime"`
	EduCloseTime    string `xml:"edcColseTime" json:"edcColseTime"`
	Content         string `xml:"lctreCo" json:"lctreCo,omitempty"`
	TargetType      string `xml:"edcTrgetType" json:"edcTrgetType"`
	MethodType      string `xml:"edcMthType" json:"edcMthType,omitempty"`
	OperDay         string `xml:"operDay" json:"operDay,omitempty"`
	Place           string `xml:"edcPlace" json:"edcPlace"`
	Capacity        string `xml:"psncpa" json:"psncpa"`
	Cost            string `xml:"lctreCost" json:"lctreCost"`
	RoadAddress     string `xml:"edcRdnmadr" json:"edcRdnmadr"`
	Institution     string `xml:"operInstitutionNm" json:"operInstitutionNm"`
	Phone           string `xml:"operPhoneNumber" json:"operPhoneNumber"`
	ReceiptStart    string `xml:"rceptStartDate" json:"rceptStartDate"`
	ReceiptEnd      string `xml:"rceptEndDate" json:"rceptEndDate"`
	ReceiptMethod   string `xml:"rceptMthType" json:"rceptMthType,omitempty"`
	ReceiptStatus   string `xml:"rceptSttus" json:"rceptSttus"`
	Homepage        string `xml:"homepageUrl" json:"homepageUrl"`
	LectureCategory string `xml:"lctreSe" json:"lctreSe"`
	ReferenceDate   string `xml:"referenceDate" json:"referenceDate,omitempty"`
}

// envelope covers both the normal response and the OpenAPI_ServiceResponse
// error wrapper; XMLName tells them apart.
type envelope struct {
	XMLName xml.Name
	Header  struct {
		ResultCode string `xml:"resultCode"`
		ResultMsg  string `xml:"resultMsg"`
	} `xml:"header"`
	Body struct {
		Items struct {
			Item []Item `xml:"item"`
		} `xml:"items"`
		NumOfRows  int `xml:"numOfRows"`
		PageNo     int `xml:"pageNo"`
		TotalCount int `xml:"totalCount"`
	} `xml:"body"`
	CmmMsgHeader struct {
		ErrMsg           string `xml:"errMsg"`
		ReturnAuthMsg    string `xml:"returnAuthMsg"`
		ReturnReasonCode string `xml:"returnReasonCode"`
	} `xml:"cmmMsgHeader"`
}

// DecodePage parses one XML page. Zero, one or many <item> elements all
// decode to a slice.
func DecodePage(body []byte) ([]Item, error) {
	var env envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode government xml: %w", err)
	}
	if env.XMLName.Local == "OpenAPI_ServiceResponse" {
		h := env.CmmMsgHeader
		return nil, fmt.Errorf("%w: %s (%s, code %s)", ErrServiceEnvelope, h.ErrMsg, h.ReturnAuthMsg, h.ReturnReasonCode)
	}
	if code := strings.TrimSpace(env.Header.ResultCode); code != "" && code != "00" {
		return nil, fmt.Errorf("%w: result code %s: %s", ErrServiceEnvelope, code, env.Header.ResultMsg)
	}
	return env.Body.Items.Item, nil
}

// FetchPage requests page pageNo.
func (c *Client) FetchPage(ctx context.Context, pageNo int) ([]Item, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryString(c.query(pageNo)).
		Get("/" + strings.TrimLeft(c.cfg.Operation, "/"))
	if err != nil {
		return nil, fmt.Errorf("fetch government page %d: %w", pageNo, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch government page %d: status %d", pageNo, resp.StatusCode())
	}
	items, err := DecodePage(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNo, err)
	}
	return items, nil
}

// query builds the raw query string. Portal keys are often issued already
// percent-encoded; those are passed through untouched.
func (c *Client) query(pageNo int) string {
	key := c.cfg.ServiceKey
	if !strings.Contains(key, "%") {
		key = url.QueryEscape(key)
	}
	v := url.Values{}
	v.Set("pageNo", strconv.Itoa(pageNo))
	v.Set("numOfRows", strconv.Itoa(c.cfg.PageSize))
	v.Set("type", "xml")
	return "serviceKey=" + key + "&" + v.Encode()
}

// FetchAll walks pages from 1 until a page shorter than the page size, an
// empty page, or MaxPages. On error the items gathered so far are returned
// with it.
func (c *Client) FetchAll(ctx context.Context) ([]Item, error) {
	var all []Item
	for page := 1; page <= c.cfg.MaxPages; page++ {
		items, err := c.FetchPage(ctx, page)
		if err != nil {
			metrics.ObserveGovPage("error")
			c.logger.Warn("government page failed", zap.Int("page", page), logging.Err(err))
			return all, err
		}
		metrics.ObserveGovPage("ok")
		all = append(all, items...)
		c.logger.Debug("government page fetched", zap.Int("page", page), zap.Int("items", len(items)))
		if len(items) < c.cfg.PageSize {
			break
		}
	}
	return all, nil
}

func (c *Client) inRegion(it Item) bool {
	want := strings.TrimSpace(c.cfg.Region)
	if want == "" {
		return true
	}
	addr := strings.TrimSpace(it.RoadAddress)
	if addr == "" {
		addr = strings.TrimSpace(it.Place)
	}
	if strings.HasPrefix(addr, want) {
		return true
	}
	// The dataset mixes "서울특별시" and "서울" address prefixes.
	return strings.HasPrefix(want, "서울") && strings.HasPrefix(addr, "서울")
}
