package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

const contactHeader = "<xml><ToUserName><![CDATA[wx5823bf96d3bd56c7]]></ToUserName>" +
	"<FromUserName><![CDATA[sys]]></FromUserName>" +
	"<CreateTime>1403610513</CreateTime>" +
	"<MsgType><![CDATA[event]]></MsgType>" +
	"<Event><![CDATA[change_contact]]></Event>"

func TestParseNotification_UpdateUser(t *testing.T) {
	plain := contactHeader +
		"<ChangeType>update_user</ChangeType>" +
		"<UserID><![CDATA[zhangsan]]></UserID>" +
		"<NewUserID><![CDATA[zhangsan001]]></NewUserID>" +
		"<Department><![CDATA[1,2,3]]></Department>" +
		"<MainDepartment>1</MainDepartment>" +
		"<IsLeaderInDept><![CDATA[1,0,0]]></IsLeaderInDept>" +
		"<DirectLeader><![CDATA[lisi,wangwu]]></DirectLeader>" +
		"<Position><![CDATA[产品经理]]></Position>" +
		"<Mobile>13800000000</Mobile>" +
		"<Gender>1</Gender>" +
		"<Email><![CDATA[zhangsan@gzdev.com]]></Email>" +
		"<Status>1</Status>" +
		"<Alias><![CDATA[jackzhang]]></Alias>" +
		"<ExtAttr><Item><Name><![CDATA[爱好]]></Name><Type>0</Type><Text><Value><![CDATA[旅游]]></Value></Text></Item>" +
		"<Item><Name><![CDATA[卡号]]></Name><Type>1</Type><Web><Title><![CDATA[企业微信]]></Title><Url><![CDATA[https://work.weixin.qq.com]]></Url></Web></Item></ExtAttr>" +
		"</xml>"

	n, err := ParseNotification(plain)
	require.NoError(t, err)
	require.NotNil(t, n.User)

	u := n.User
	assert.Equal(t, model.EventChangeContact, n.Event)
	assert.Equal(t, model.ChangeUpdateUser, n.ChangeType)
	assert.Equal(t, "zhangsan", u.UserID)
	assert.Equal(t, "zhangsan001", u.NewUserID)
	assert.Empty(t, u.Name, "ExtAttr item names must not leak into the member name")
	assert.Equal(t, []int{1, 2, 3}, u.Department)
	assert.Equal(t, 1, u.MainDepartment)
	assert.Equal(t, []int{1, 0, 0}, u.IsLeaderInDept)
	assert.Equal(t, []string{"lisi", "wangwu"}, u.DirectLeader)
	assert.Equal(t, "产品经理", u.Position)
	assert.Equal(t, "13800000000", u.Mobile)
	assert.Equal(t, 1, u.Gender)
	assert.Equal(t, "zhangsan@gzdev.com", u.Email)
	assert.Equal(t, 1, u.Status)
	assert.Equal(t, "jackzhang", u.Alias)

	require.Len(t, u.ExtAttr, 2)
	assert.Equal(t, model.ExtAttrItem{Name: "爱好", Type: model.ExtAttrTypeText, Value: "旅游"}, u.ExtAttr[0])
	assert.Equal(t, &model.ExtAttrWeb{Title: "企业微信", URL: "https://work.weixin.qq.com"}, u.ExtAttr[1].Web)
}

func TestParseNotification_DeleteUser(t *testing.T) {
	n, err := ParseNotification(contactHeader + "<ChangeType>delete_user</ChangeType><UserID><![CDATA[zhangsan]]></UserID></xml>")
	require.NoError(t, err)
	require.NotNil(t, n.User)
	assert.Equal(t, "zhangsan", n.User.UserID)
	assert.Nil(t, n.User.Department)
}

func TestParseNotification_Party(t *testing.T) {
	n, err := ParseNotification(contactHeader +
		"<ChangeType>create_party</ChangeType>" +
		"<Id>2</Id><Name><![CDATA[张三]]></Name><ParentId><![CDATA[1]]></ParentId><Order>1</Order></xml>")
	require.NoError(t, err)
	assert.Equal(t, &model.PartyChange{ID: 2, Name: "张三", ParentID: 1, Order: 1}, n.Party)
}

func TestParseNotification_Tag(t *testing.T) {
	n, err := ParseNotification(contactHeader +
		"<ChangeType><![CDATA[update_tag]]></ChangeType>" +
		"<TagId>1</TagId>" +
		"<AddUserItems><![CDATA[zhangsan,lisi]]></AddUserItems>" +
		"<DelUserItems><![CDATA[wangwu]]></DelUserItems>" +
		"<AddPartyItems><![CDATA[1,2]]></AddPartyItems>" +
		"<DelPartyItems><![CDATA[3]]></DelPartyItems></xml>")
	require.NoError(t, err)
	assert.Equal(t, &model.TagChange{
		TagID:         1,
		AddUserItems:  []string{"zhangsan", "lisi"},
		DelUserItems:  []string{"wangwu"},
		AddPartyItems: []int{1, 2},
		DelPartyItems: []int{3},
	}, n.Tag)
}

func TestParseNotification_BatchJob(t *testing.T) {
	header := "<xml><ToUserName><![CDATA[wx28dbb14e3720FAKE]]></ToUserName>" +
		"<FromUserName><![CDATA[sys]]></FromUserName>" +
		"<CreateTime>1425284517</CreateTime>" +
		"<MsgType><![CDATA[event]]></MsgType>" +
		"<Event><![CDATA[batch_job_result]]></Event>"

	n, err := ParseNotification(header +
		"<BatchJob><JobId><![CDATA[S0MrnndvRG5fadSlLwiBqiDDbM143UqTmKP3152FZk4]]></JobId>" +
		"<JobType><![CDATA[sync_user]]></JobType><ErrCode>0</ErrCode><ErrMsg><![CDATA[ok]]></ErrMsg></BatchJob></xml>")
	require.NoError(t, err)
	assert.Equal(t, &model.BatchJob{
		JobID:   "S0MrnndvRG5fadSlLwiBqiDDbM143UqTmKP3152FZk4",
		JobType: "sync_user",
		ErrCode: 0,
		ErrMsg:  "ok",
	}, n.BatchJob)

	_, err = ParseNotification(header + "</xml>")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedInput))
}

func TestParseNotification_Malformed(t *testing.T) {
	for _, in := range []string{"", "plain text", "<xml><a>1</a"} {
		_, err := ParseNotification(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, model.ErrMalformedInput), "input %q", in)
	}
}

func TestParseNotification_FieldsKeepFirstOccurrence(t *testing.T) {
	n, err := ParseNotification("<xml><MsgType>text</MsgType><Content><![CDATA[a]]></Content><Content>b</Content></xml>")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"MsgType": "text", "Content": "a"}, n.Fields)
}

func TestLogSink_Handle(t *testing.T) {
	reply, err := LogSink{}.Handle(context.Background(), &model.Notification{MsgType: "text"})
	require.NoError(t, err)
	assert.Empty(t, reply)
}
