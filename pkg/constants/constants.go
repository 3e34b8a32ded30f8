// pkg/constants/constants.go
package constants

//============== UPLOAD CONTEXTS ==============

// UploadContext определяет тип для контекстов загрузки файлов.
type UploadContext string

const (
	// UploadContextCRFAttachment используется для вложений к заявке.
	UploadContextCRFAttachment UploadContext = "crf_attachment"
)

// String возвращает строковое представление контекста.
func (uc UploadContext) String() string {
	return string(uc)
}

//============== TIMELINE ==============

// Виды записей в таймлайне заявки.
const (
	TimelineStatusChange  = "STATUS_CHANGE"
	TimelineRemarkAdded   = "REMARK_ADDED"
	TimelineRemarkUpdated = "REMARK_UPDATED"
	TimelineFactorUpdated = "FACTOR_UPDATED"
)

//============== CACHE KEYS ==============

const (
	// Формат: crf_actor:<userID> -> JSON entities.User
	CacheKeyActor = "crf_actor:%d"

	// Формат: crf_role_members:<role>:<departmentID> -> JSON []entities.User, 0 - любое подразделение
	CacheKeyRoleMembers = "crf_role_members:%s:%d"
)

//============== NOTIFICATION OUTBOX ==============

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
	OutboxStatusDead    = "DEAD"
)
