package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/xmlfield"
)

// NotificationSink consumes authenticated notifications. A non-empty reply is
// encrypted and returned to the platform; an empty reply acknowledges with
// "success".
type NotificationSink interface {
	Handle(ctx context.Context, n *model.Notification) (reply string, err error)
}

// LogSink acknowledges every notification after logging it.
type LogSink struct {
	Logger *slog.Logger
}

// Handle logs n and returns no reply.
func (s LogSink) Handle(_ context.Context, n *model.Notification) (string, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		"msg_type", n.MsgType,
		"event", n.Event,
		"change_type", n.ChangeType,
		"from", n.FromUserName,
	)
	return "", nil
}

// ParseNotification decodes a decrypted callback message. Common fields are
// always set; the typed payload is chosen by Event and ChangeType.
func ParseNotification(plain string) (*model.Notification, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(plain); err != nil {
		return nil, fmt.Errorf("%w: parse notification: %w", model.ErrMalformedInput, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: notification has no root element", model.ErrMalformedInput)
	}

	n := &model.Notification{
		ToUserName:   xmlfield.Value(plain, "ToUserName"),
		FromUserName: xmlfield.Value(plain, "FromUserName"),
		MsgType:      xmlfield.Value(plain, "MsgType"),
		Event:        xmlfield.Value(plain, "Event"),
		ChangeType:   xmlfield.Value(plain, "ChangeType"),
		AgentID:      xmlfield.Value(plain, "AgentID"),
		Fields:       make(map[string]string, len(root.ChildElements())),
		Raw:          plain,
	}
	if ts := xmlfield.Int(plain, "CreateTime"); ts > 0 {
		n.CreateTime = time.Unix(int64(ts), 0)
	}
	for _, el := range root.ChildElements() {
		if _, seen := n.Fields[el.Tag]; !seen {
			n.Fields[el.Tag] = strings.TrimSpace(el.Text())
		}
	}

	switch {
	case n.Event == model.EventBatchJobResult:
		job, err := parseBatchJob(plain)
		if err != nil {
			return nil, err
		}
		n.BatchJob = job
	case n.Event != model.EventChangeContact:
		// Not a directory-sync event; only common fields apply.
	case n.ChangeType == model.ChangeCreateUser,
		n.ChangeType == model.ChangeUpdateUser,
		n.ChangeType == model.ChangeDeleteUser:
		n.User = parseUserChange(plain)
	case n.ChangeType == model.ChangeCreateParty,
		n.ChangeType == model.ChangeUpdateParty,
		n.ChangeType == model.ChangeDeleteParty:
		n.Party = &model.PartyChange{
			ID:       xmlfield.Int(plain, "Id"),
			Name:     xmlfield.Value(plain, "Name"),
			ParentID: xmlfield.Int(plain, "ParentId"),
			Order:    xmlfield.Int(plain, "Order"),
		}
	case n.ChangeType == model.ChangeUpdateTag:
		n.Tag = &model.TagChange{
			TagID:         xmlfield.Int(plain, "TagId"),
			AddUserItems:  xmlfield.Strings(plain, "AddUserItems"),
			DelUserItems:  xmlfield.Strings(plain, "DelUserItems"),
			AddPartyItems: xmlfield.Ints(plain, "AddPartyItems"),
			DelPartyItems: xmlfield.Ints(plain, "DelPartyItems"),
		}
	}

	return n, nil
}

func parseUserChange(plain string) *model.UserChange {
	// ExtAttr items carry their own <Name> tags, so scalar fields are read
	// from the document with that block removed.
	scalars := plain
	var ext []model.ExtAttrItem
	if block, ok := xmlfield.Block(plain, "ExtAttr"); ok {
		scalars = strings.Replace(plain, block, "", 1)
		ext = xmlfield.ExtAttrItems(block)
	}

	return &model.UserChange{
		UserID:         xmlfield.Value(scalars, "UserID"),
		NewUserID:      xmlfield.Value(scalars, "NewUserID"),
		Name:           xmlfield.Value(scalars, "Name"),
		Department:     xmlfield.Ints(scalars, "Department"),
		MainDepartment: xmlfield.Int(scalars, "MainDepartment"),
		IsLeaderInDept: xmlfield.Ints(scalars, "IsLeaderInDept"),
		DirectLeader:   xmlfield.Strings(scalars, "DirectLeader"),
		Position:       xmlfield.Value(scalars, "Position"),
		Mobile:         xmlfield.Value(scalars, "Mobile"),
		Gender:         xmlfield.Int(scalars, "Gender"),
		Email:          xmlfield.Value(scalars, "Email"),
		BizMail:        xmlfield.Value(scalars, "BizMail"),
		Status:         xmlfield.Int(scalars, "Status"),
		Avatar:         xmlfield.Value(scalars, "Avatar"),
		Alias:          xmlfield.Value(scalars, "Alias"),
		Telephone:      xmlfield.Value(scalars, "Telephone"),
		Address:        xmlfield.Value(scalars, "Address"),
		ExtAttr:        ext,
	}
}

func parseBatchJob(plain string) (*model.BatchJob, error) {
	block, err := xmlfield.RequireBlock(plain, "BatchJob")
	if err != nil {
		return nil, err
	}
	return &model.BatchJob{
		JobID:   xmlfield.Value(block, "JobId"),
		JobType: xmlfield.Value(block, "JobType"),
		ErrCode: xmlfield.Int(block, "ErrCode"),
		ErrMsg:  xmlfield.Value(block, "ErrMsg"),
	}, nil
}
