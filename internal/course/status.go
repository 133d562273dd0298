package course

import "strings"

// Status is the closed set of recruitment states shown to users.
type Status string

// Canonical status values.
const (
	StatusOpen        Status = "접수중"
	StatusWaitlist    Status = "접수대기"
	StatusClosingSoon Status = "마감임박"
	StatusUpcoming    Status = "접수예정"
	StatusClosed      Status = "모집종료"
	StatusReopened    Status = "추가접수"
	// StatusUnknown marks raw strings the synonym table does not cover. The
	// raw value is kept in raw_data so the table can be extended later.
	StatusUnknown Status = "확인필요"
)

// Statuses lists every canonical value including StatusUnknown.
func Statuses() []Status {
	return []Status{
		StatusOpen, StatusWaitlist, StatusClosingSoon, StatusUpcoming,
		StatusClosed, StatusReopened, StatusUnknown,
	}
}

// Valid reports whether s is one of the canonical values.
func (s Status) Valid() bool {
	for _, v := range Statuses() {
		if s == v {
			return true
		}
	}
	return false
}

var statusSynonyms = map[string]Status{
	"접수중":    StatusOpen,
	"모집중":    StatusOpen,
	"접수가능":   StatusOpen,
	"신청가능":   StatusOpen,
	"신청중":    StatusOpen,
	"수강신청":   StatusOpen,
	"온라인접수":  StatusOpen,
	"방문접수":   StatusOpen,
	"선착순접수":  StatusOpen,
	"접수대기":   StatusWaitlist,
	"대기접수":   StatusWaitlist,
	"대기신청":   StatusWaitlist,
	"대기자접수":  StatusWaitlist,
	"마감임박":   StatusClosingSoon,
	"잔여석":    StatusClosingSoon,
	"곧마감":    StatusClosingSoon,
	"접수예정":   StatusUpcoming,
	"모집예정":   StatusUpcoming,
	"오픈예정":   StatusUpcoming,
	"준비중":    StatusUpcoming,
	"모집종료":   StatusClosed,
	"마감":     StatusClosed,
	"접수마감":   StatusClosed,
	"모집마감":   StatusClosed,
	"신청마감":   StatusClosed,
	"접수완료":   StatusClosed,
	"접수종료":   StatusClosed,
	"강좌종료":   StatusClosed,
	"교육종료":   StatusClosed,
	"종료":     StatusClosed,
	"정원마감":   StatusClosed,
	"정원초과":   StatusClosed,
	"마감되었습니다": StatusClosed,
	"추가접수":   StatusReopened,
	"추가모집":   StatusReopened,
	"재접수":    StatusReopened,
	"확인필요":   StatusUnknown,
}

// ClosedSynonyms returns the raw strings that normalize to StatusClosed.
func ClosedSynonyms() []string {
	var out []string
	for raw, s := range statusSynonyms {
		if s == StatusClosed {
			out = append(out, raw)
		}
	}
	return out
}

// NormalizeStatus maps a raw source status to a canonical value. Empty input
// yields the default StatusOpen; unmapped text yields StatusUnknown.
func NormalizeStatus(raw string) Status {
	key := strings.Join(strings.Fields(raw), "")
	if key == "" {
		return StatusOpen
	}
	if s, ok := statusSynonyms[key]; ok {
		return s
	}
	return StatusUnknown
}

// IsClosedFamily reports whether raw belongs to the closed-family synonyms.
func IsClosedFamily(raw string) bool {
	return NormalizeStatus(raw) == StatusClosed
}
