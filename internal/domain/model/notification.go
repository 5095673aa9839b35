package model

import "time"

// Event and change-type values carried by directory-sync notifications.
const (
	EventChangeContact  = "change_contact"
	EventBatchJobResult = "batch_job_result"

	ChangeCreateUser  = "create_user"
	ChangeUpdateUser  = "update_user"
	ChangeDeleteUser  = "delete_user"
	ChangeCreateParty = "create_party"
	ChangeUpdateParty = "update_party"
	ChangeDeleteParty = "delete_party"
	ChangeUpdateTag   = "update_tag"
)

// Notification is a decrypted, authenticated callback message. At most one of
// the typed payloads is set, chosen by Event and ChangeType. Fields holds every
// top-level element of the message by tag name.
type Notification struct {
	ToUserName   string
	FromUserName string
	CreateTime   time.Time
	MsgType      string
	Event        string
	ChangeType   string
	AgentID      string

	User     *UserChange
	Party    *PartyChange
	Tag      *TagChange
	BatchJob *BatchJob

	Fields map[string]string
	Raw    string
}

// UserChange is the payload of create_user, update_user and delete_user events.
// Zero values mean the platform did not send the field.
type UserChange struct {
	UserID         string
	NewUserID      string
	Name           string
	Department     []int
	MainDepartment int
	IsLeaderInDept []int
	DirectLeader   []string
	Position       string
	Mobile         string
	Gender         int
	Email          string
	BizMail        string
	Status         int
	Avatar         string
	Alias          string
	Telephone      string
	Address        string
	ExtAttr        []ExtAttrItem
}

// PartyChange is the payload of create_party, update_party and delete_party events.
type PartyChange struct {
	ID       int
	Name     string
	ParentID int
	Order    int
}

// TagChange is the payload of update_tag events.
type TagChange struct {
	TagID         int
	AddUserItems  []string
	DelUserItems  []string
	AddPartyItems []int
	DelPartyItems []int
}

// BatchJob is the payload of batch_job_result events.
type BatchJob struct {
	JobID   string
	JobType string
	ErrCode int
	ErrMsg  string
}

// ExtAttrItem is one extended attribute of a directory member.
// Value is set for text attributes and Web for web attributes; attributes of
// any other type carry only Name and Type.
type ExtAttrItem struct {
	Name  string
	Type  ExtAttrType
	Value string
	Web   *ExtAttrWeb
}

// ExtAttrWeb is the link payload of a web extended attribute.
type ExtAttrWeb struct {
	Title string
	URL   string
}
