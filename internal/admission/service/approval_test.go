package service

import (
	"sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

func (s *ServiceSuite) submitPending(actorID id.ActorID) id.CommandID {
	decision, err := s.svc.Admit(s.ctx, actorID, "sudo apt upgrade")
	require.NoError(s.T(), err)
	require.Equal(s.T(), id.OutcomePending, decision.Outcome)
	return decision.CommandID
}

// =============================================================================
// Resolve: approval
// =============================================================================

func (s *ServiceSuite) TestResolve_Approve() {
	s.seedDefaultRules()
	actorID := s.seedActor(100)
	adminID := s.seedActor(100)
	commandID := s.submitPending(actorID)
	actorCh := s.hub.SubscribeActor(actorID, 4)

	decision, err := s.svc.Resolve(s.ctx, commandID, true, adminID)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), id.OutcomeAccepted, decision.Outcome)
	require.NotNil(s.T(), decision.BalanceAfter)
	assert.Equal(s.T(), 99, *decision.BalanceAfter, "the debit happens at approval time")
	require.NotNil(s.T(), decision.Result)

	rec, err := s.commands.Get(s.ctx, commandID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), rec)
	assert.Equal(s.T(), id.OutcomeAccepted, rec.Decision)
	assert.Equal(s.T(), 1, rec.Cost)
	assert.NotNil(s.T(), rec.ExecutedAt)

	select {
	case n := <-actorCh:
		assert.Equal(s.T(), "command_update", n.Type)
		assert.Equal(s.T(), "executed", n.Payload["status"])
	default:
		s.T().Fatal("expected the submitter to be notified of the approval")
	}
}

func (s *ServiceSuite) TestResolve_Reject() {
	s.seedDefaultRules()
	actorID := s.seedActor(100)
	adminID := s.seedActor(100)
	commandID := s.submitPending(actorID)

	decision, err := s.svc.Resolve(s.ctx, commandID, false, adminID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), id.OutcomeRejected, decision.Outcome)

	balance, err := s.actors.Balance(s.ctx, actorID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 100, balance, "a rejected approval never debits")

	rec, err := s.commands.Get(s.ctx, commandID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), id.OutcomeRejected, rec.Decision)
	assert.Equal(s.T(), 0, rec.Cost)
}

func (s *ServiceSuite) TestResolve_ApproveBrokeActor() {
	// The actor spends everything while the command waits in the queue, so
	// approval degrades to a rejection instead of overdrawing.
	s.seedDefaultRules()
	actorID := s.seedActor(1)
	adminID := s.seedActor(100)
	commandID := s.submitPending(actorID)

	accepted, err := s.svc.Admit(s.ctx, actorID, "ls")
	require.NoError(s.T(), err)
	require.Equal(s.T(), id.OutcomeAccepted, accepted.Outcome)

	decision, err := s.svc.Resolve(s.ctx, commandID, true, adminID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), id.OutcomeRejected, decision.Outcome)
	assert.Equal(s.T(), id.ReasonInsufficientCredits, decision.Reason)

	balance, err := s.actors.Balance(s.ctx, actorID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, balance, "the failed approval must not drive the balance negative")
}

// =============================================================================
// Resolve: guards
// =============================================================================

func (s *ServiceSuite) TestResolve_MissingCommand() {
	s.seedDefaultRules()
	adminID := s.seedActor(100)

	_, err := s.svc.Resolve(s.ctx, id.NewCommandID(), true, adminID)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestResolve_AlreadyResolved() {
	s.seedDefaultRules()
	actorID := s.seedActor(100)
	adminID := s.seedActor(100)
	commandID := s.submitPending(actorID)

	_, err := s.svc.Resolve(s.ctx, commandID, false, adminID)
	require.NoError(s.T(), err)

	_, err = s.svc.Resolve(s.ctx, commandID, true, adminID)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestResolve_NonPendingCommand() {
	s.seedDefaultRules()
	actorID := s.seedActor(100)
	adminID := s.seedActor(100)

	accepted, err := s.svc.Admit(s.ctx, actorID, "ls")
	require.NoError(s.T(), err)
	require.Equal(s.T(), id.OutcomeAccepted, accepted.Outcome)

	_, err = s.svc.Resolve(s.ctx, accepted.CommandID, true, adminID)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestResolve_ConcurrentSingleWinner() {
	s.seedDefaultRules()
	actorID := s.seedActor(100)
	adminID := s.seedActor(100)
	commandID := s.submitPending(actorID)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Resolve(s.ctx, commandID, true, adminID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(s.T(), 1, succeeded, "a pending record resolves exactly once")

	balance, err := s.actors.Balance(s.ctx, actorID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 99, balance, "losing resolutions must not leave extra debits")
}
