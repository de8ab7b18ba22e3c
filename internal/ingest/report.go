package ingest

import (
	"fmt"
	"strings"
)

// NoticeLevel 是界面提示的级别。
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeWarning NoticeLevel = "warning"
)

// Notification 是一条面向用户的提示。
type Notification struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// FailedFile 是摘要中的一条失败记录。
type FailedFile struct {
	Name   string        `json:"name"`
	Reason FailureReason `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}

// Summary 是批次结果的展示摘要。
type Summary struct {
	Admitted      int            `json:"admitted"`
	Succeeded     int            `json:"succeeded"`
	Failed        int            `json:"failed"`
	Cancelled     int            `json:"cancelled"`
	Failures      []FailedFile   `json:"failures"`
	Rejected      []Rejection    `json:"rejected"`
	Notifications []Notification `json:"notifications"`
}

// Summarize 汇总批次结果，失败项按提交顺序排列。校验拒绝计入 Rejected，
// 同时以 validation-failed 出现在 Failures 中。
func Summarize(out Outcome) Summary {
	s := Summary{
		Admitted:  len(out.Files),
		Succeeded: out.Succeeded(),
		Failed:    out.Failed(),
		Cancelled: out.Cancelled(),
		Failures:  []FailedFile{},
		Rejected:  []Rejection{},
	}

	for _, r := range out.Rejected {
		s.Rejected = append(s.Rejected, r)
		s.Failures = append(s.Failures, FailedFile{
			Name:   r.Name,
			Reason: ReasonValidationFailed,
			Detail: joinReasons(r.Reasons),
		})
	}
	for _, f := range out.Files {
		if f.Status != StatusFailed {
			continue
		}
		s.Failures = append(s.Failures, FailedFile{Name: f.Name, Reason: f.Reason, Detail: f.Detail})
	}

	s.Notifications = notifications(s)
	return s
}

func notifications(s Summary) []Notification {
	notes := []Notification{}

	for _, r := range s.Rejected {
		for _, reason := range r.Reasons {
			notes = append(notes, rejectionNotice(r.Name, reason))
		}
	}

	if s.Succeeded > 0 {
		notes = append(notes, Notification{
			Level:   NoticeSuccess,
			Title:   "Upload successful",
			Message: fmt.Sprintf("%d file(s) uploaded successfully", s.Succeeded),
		})
	}

	seen := make(map[string]struct{})
	for _, f := range s.Failures {
		if f.Reason == ReasonValidationFailed {
			continue
		}
		if _, dup := seen[f.Name]; dup {
			continue
		}
		seen[f.Name] = struct{}{}
		notes = append(notes, Notification{
			Level:   NoticeError,
			Title:   "Upload failed",
			Message: fmt.Sprintf("Failed to upload %s: %s", f.Name, failureText(f.Reason)),
		})
	}

	if s.Cancelled > 0 {
		notes = append(notes, Notification{
			Level:   NoticeWarning,
			Title:   "Upload cancelled",
			Message: fmt.Sprintf("%d file(s) were not uploaded", s.Cancelled),
		})
	}
	return notes
}

func rejectionNotice(name string, reason RejectReason) Notification {
	n := Notification{Level: NoticeError}
	switch reason {
	case RejectSize:
		n.Title = "File too large"
		n.Message = fmt.Sprintf("%s exceeds the 50MB limit", name)
	case RejectFormat:
		n.Title = "Unsupported format"
		n.Message = fmt.Sprintf("%s is not a supported file type", name)
	case RejectName:
		n.Title = "File name too long"
		n.Message = fmt.Sprintf("%s has a name longer than %d characters", name, DefaultMaxNameLength)
	case RejectDuplicate:
		n.Level = NoticeWarning
		n.Title = "Duplicate file"
		n.Message = fmt.Sprintf("%s is already in this batch", name)
	default:
		n.Title = "File rejected"
		n.Message = name
	}
	return n
}

func failureText(reason FailureReason) string {
	switch reason {
	case ReasonWriteFailed:
		return "could not store the file"
	case ReasonMetadataFailed:
		return "could not save the file record"
	default:
		return string(reason)
	}
}

func joinReasons(reasons []RejectReason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
