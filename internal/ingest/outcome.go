package ingest

// Status 是单个文件在批次中的最终状态。
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// FailureReason 区分失败发生在哪一步。
type FailureReason string

const (
	ReasonWriteFailed      FailureReason = "write-failed"
	ReasonMetadataFailed   FailureReason = "metadata-failed"
	ReasonValidationFailed FailureReason = "validation-failed"
)

// FileOutcome 是单个已接受文件的处理结果。
type FileOutcome struct {
	Name       string        `json:"name"`
	Size       int64         `json:"size"`
	Key        string        `json:"key,omitempty"`
	Status     Status        `json:"status"`
	Reason     FailureReason `json:"reason,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	RecordID   string        `json:"record_id,omitempty"`
	PreviewURL string        `json:"preview_url,omitempty"`

	orphaned bool
}

// Orphaned 表示元数据写入失败后补偿删除也失败，对象留在存储中。
func (o FileOutcome) Orphaned() bool {
	return o.orphaned
}

// Outcome 是一次批次上传的完整结果，Files 与提交顺序一致。
type Outcome struct {
	Files    []FileOutcome `json:"files"`
	Rejected []Rejection   `json:"rejected,omitempty"`
}

func (o Outcome) count(status Status) int {
	n := 0
	for _, f := range o.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Succeeded 返回成功入库的文件数。
func (o Outcome) Succeeded() int { return o.count(StatusSucceeded) }

// Failed 返回已接受但处理失败的文件数，不含校验拒绝。
func (o Outcome) Failed() int { return o.count(StatusFailed) }

func (o Outcome) Cancelled() int { return o.count(StatusCancelled) }
