package gov

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/extract"
	"github.com/JakeFAU/course-ingest/internal/logging"
	"github.com/JakeFAU/course-ingest/internal/region"
	"github.com/JakeFAU/course-ingest/internal/sanitize"
)

// SourceName tags government records in raw_data.
const SourceName = "gov"

// D-day labels.
const (
	DDayClosed = "마감"
	DDayToday  = "오늘마감"
)

var placeholderStatuses = map[string]bool{"": true, "-": true, "정보없음": true, "미정": true}

// ComputeStatus derives the canonical status of a government record from its
// raw receipt status and, when that says nothing, from the receipt window.
func ComputeStatus(raw, applyStart, applyEnd string, today time.Time) course.Status {
	key := strings.Join(strings.Fields(raw), "")
	switch {
	case course.IsClosedFamily(key):
		return course.StatusClosed
	case strings.Contains(key, "대기"):
		return course.StatusWaitlist
	case strings.Contains(key, "추가"):
		return course.StatusReopened
	case placeholderStatuses[key]:
		day := course.StartOfDay(today)
		if start, ok := course.ParseDate(applyStart); ok && day.Before(start) {
			return course.StatusUpcoming
		}
		if end, ok := course.ParseDate(applyEnd); ok && day.After(end) {
			return course.StatusClosed
		}
		return course.StatusOpen
	default:
		return course.NormalizeStatus(key)
	}
}

// DDay labels the days left until applyEnd: "마감" once past, "오늘마감" on
// the day, "D-N" before. Unparseable dates yield "".
func DDay(applyEnd string, today time.Time) string {
	end, ok := course.ParseDate(applyEnd)
	if !ok {
		return ""
	}
	n := course.DaysBetween(today, end)
	switch {
	case n < 0:
		return DDayClosed
	case n == 0:
		return DDayToday
	default:
		return "D-" + strconv.Itoa(n)
	}
}

// Map converts one dataset row into a canonical course. The boolean is false
// for rows without a title.
func Map(it Item, today time.Time) (course.Course, bool) {
	title := sanitize.Title(it.LectureName)
	if title == "" {
		return course.Course{}, false
	}

	rawRegion, ok := region.DistrictOf(it.RoadAddress)
	if !ok {
		if fields := strings.Fields(it.RoadAddress); len(fields) > 0 {
			rawRegion = fields[0]
		}
	}
	loc := region.Normalize(rawRegion, it.Institution, it.Place)
	status := ComputeStatus(it.ReceiptStatus, it.ReceiptStart, it.ReceiptEnd, today)

	raw := map[string]any{
		course.RawKeySource: SourceName,
		"item":              it,
	}
	if dday := DDay(it.ReceiptEnd, today); dday != "" {
		raw[course.RawKeyDDay] = dday
	}
	if s := strings.TrimSpace(it.ReceiptStatus); s != "" {
		raw[course.RawKeyRawStatus] = s
	}

	c := course.Course{
		Title:       title,
		Category:    field(it.LectureCategory),
		Target:      field(it.TargetType),
		Status:      status,
		Institution: loc.Institution,
		Region:      loc.Region,
		Place:       field(it.Place),
		CourseDate:  course.FormatDateRange(it.EduStartDay, it.EduEndDay),
		ApplyDate:   course.FormatDateRange(it.ReceiptStart, it.ReceiptEnd),
		Time:        timeRange(it.EduStartTime, it.EduCloseTime),
		Price:       price(it.Cost),
		Capacity:    int(course.ParseCapacity(it.Capacity)),
		Contact:     field(it.Phone),
		Link:        extract.Resolve("", it.Homepage),
		RawData:     raw,
	}
	return course.ApplyDefaults(c), true
}

func field(s string) string {
	return sanitize.TextField(s, sanitize.MaxFieldLength)
}

func price(cost string) string {
	cost = strings.TrimSpace(strings.ReplaceAll(cost, ",", ""))
	if cost == "" || cost == "0" {
		return course.DefaultPrice
	}
	if _, err := strconv.Atoi(cost); err == nil {
		return cost + "원"
	}
	return field(cost)
}

func timeRange(start, end string) string {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	switch {
	case start == "" && end == "":
		return ""
	case end == "":
		return start
	case start == "":
		return "~ " + end
	default:
		return start + " ~ " + end
	}
}

// Upserter is the slice of course.Store the government source writes to.
type Upserter interface {
	Upsert(ctx context.Context, courses []course.Course) (int, error)
}

// Stats summarizes one Ingest call.
type Stats struct {
	Fetched  int
	InRegion int
	Mapped   int
	Upserted int
}

// Ingest fetches every page, keeps the configured region, maps, dedupes and
// upserts. A service envelope error still upserts the rows fetched before it.
func (c *Client) Ingest(ctx context.Context, store Upserter) (Stats, error) {
	items, fetchErr := c.FetchAll(ctx)
	stats := Stats{Fetched: len(items)}
	today := c.now().In(course.Seoul)

	courses := make([]course.Course, 0, len(items))
	for _, it := range items {
		if !c.inRegion(it) {
			continue
		}
		stats.InRegion++
		if mapped, ok := Map(it, today); ok {
			courses = append(courses, mapped)
		}
	}
	courses = course.Dedupe(courses)
	stats.Mapped = len(courses)

	if len(courses) > 0 {
		n, err := store.Upsert(ctx, courses)
		stats.Upserted = n
		if err != nil {
			c.logger.Error("government upsert failed", zap.Int("courses", len(courses)), logging.Err(err))
			if fetchErr != nil {
				return stats, fmt.Errorf("upsert government courses: %w (fetch: %v)", err, fetchErr)
			}
			return stats, fmt.Errorf("upsert government courses: %w", err)
		}
	}
	c.logger.Info("government source ingested",
		zap.Int("fetched", stats.Fetched),
		zap.Int("in_region", stats.InRegion),
		zap.Int("mapped", stats.Mapped),
		zap.Int("upserted", stats.Upserted),
	)
	return stats, fetchErr
}
