package quorumproposal

import (
	"context"

	"github.com/onflow/hotshot/consensus/hotshot/dependency"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// dependencies builds the condition for proposing in view: the payload and
// VID dispersal of the view, and one of a timeout certificate, a view-sync
// certificate, or a QC of the previous view with the proposal it certifies.
// Up to view 1 the QC alone suffices, as genesis has no proposal. The event
// that triggered the task completes its dependency right away. View-sync
// certificates only count once they validate.
func (t *Task) dependencies(ctx context.Context, view model.View, trigger events.Event) dependency.Dependency {
	payload := t.eventDependency("payload", func(ev events.Event) bool {
		e, ok := ev.(events.SendPayloadCommitmentAndMetadata)
		return ok && e.ViewNumber == view
	})
	vid := t.eventDependency("vid_disperse", func(ev events.Event) bool {
		e, ok := ev.(events.VidDisperseSend)
		return ok && e.ViewNumber == view
	})
	timeout := t.eventDependency("timeout", func(ev events.Event) bool {
		e, ok := ev.(events.Qc2Formed)
		return ok && e.TC != nil && e.TC.View().Next() == view
	})
	viewSync := t.eventDependency("view_sync", func(ev events.Event) bool {
		e, ok := ev.(events.ViewSyncFinalizeCertificateRecv)
		return ok && e.Cert.View() == view && t.validateViewSyncCertificate(ctx, e.Cert) == nil
	})
	qc := t.eventDependency("qc", func(ev events.Event) bool {
		e, ok := ev.(events.Qc2Formed)
		return ok && e.QC != nil && e.QC.View().Next() == view
	})
	var proposal *dependency.EventDependency
	if view > 1 {
		proposal = t.eventDependency("proposal", func(ev events.Event) bool {
			e, ok := ev.(events.QuorumProposalPreliminarilyValidated)
			return ok && e.Proposal.Data.View().Next() == view
		})
	}

	switch e := trigger.(type) {
	case events.SendPayloadCommitmentAndMetadata:
		payload.MarkCompleted(e)
	case events.VidDisperseSend:
		vid.MarkCompleted(e)
	case events.ViewSyncFinalizeCertificateRecv:
		viewSync.MarkCompleted(e)
	case events.Qc2Formed:
		if e.TC != nil {
			timeout.MarkCompleted(e)
		} else {
			qc.MarkCompleted(e)
		}
	case events.QuorumProposalPreliminarilyValidated:
		if proposal != nil {
			proposal.MarkCompleted(e)
		}
	}

	var justified dependency.Dependency = qc
	if proposal != nil {
		justified = dependency.And(qc, proposal)
	}
	return dependency.And(
		dependency.And(payload, vid),
		dependency.Or(timeout, viewSync, justified),
	)
}

func (t *Task) eventDependency(name string, match func(events.Event) bool) *dependency.EventDependency {
	return dependency.NewEventDependency(t.sub.Clone(), name, match)
}
