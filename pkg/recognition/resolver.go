package recognition

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-kiosk/pkg/members"
	"github.com/teslashibe/go-kiosk/pkg/protocol"
)

// resolve maps a service response to the member that should become
// current. apply is false when identity must be left as it is: the same
// member is already current, or the member API failed.
func (o *Orchestrator) resolve(resp *protocol.RecognitionResponse, log *slog.Logger) (m *members.Member, apply bool) {
	id := resp.Identity()
	if id == "" {
		return nil, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.config.MemberTimeout)
	defer cancel()

	if resp.IsNew {
		created, err := o.members.CreateMember(ctx, members.NewMemberRequest(id))
		if err != nil {
			log.Error("register new member failed", "member_id", id, "error", err)
			return nil, false
		}
		list, err := o.members.GetMembers(ctx)
		if err != nil {
			log.Warn("refresh member list failed", "error", err)
		} else {
			o.identity.SetMembers(list)
		}
		log.Info("new member registered", "member_id", created.ID)
		return created, true
	}

	if id == o.identity.CurrentID() {
		return nil, false
	}

	fetched, err := o.members.GetMember(ctx, id)
	if err != nil {
		log.Error("fetch member failed", "member_id", id, "error", err)
		return nil, false
	}
	log.Info("member recognized", "member_id", fetched.ID)
	return fetched, true
}
