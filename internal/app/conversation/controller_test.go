package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/lexcite/internal/adapters/clock"
	"github.com/PabloGalante/lexcite/internal/adapters/corpus"
	"github.com/PabloGalante/lexcite/internal/adapters/storage/memory"
	"github.com/PabloGalante/lexcite/internal/app/conversation"
	"github.com/PabloGalante/lexcite/internal/app/research"
	"github.com/PabloGalante/lexcite/internal/domain"
)

const exampleQuestion = "Are claimants entitled to future prospects when the deceased was self-employed and aged 54-55?"

func newMatcher(t *testing.T) *research.KeywordMatcher {
	t.Helper()

	c, err := corpus.Default()
	require.NoError(t, err)

	m, err := research.NewKeywordMatcher(c)
	require.NoError(t, err)
	return m
}

func newController(t *testing.T, sched domain.Scheduler) *conversation.Controller {
	t.Helper()

	seq := 0
	ctrl, err := conversation.NewController("s1", newMatcher(t), conversation.ControllerOptions{
		Scheduler: sched,
		Delay:     conversation.DefaultDelay,
		Store:     memory.NewMessageStore(),
		NewID: func() string {
			seq++
			return fmt.Sprintf("m%d", seq)
		},
	})
	require.NoError(t, err)
	return ctrl
}

func TestSubmitAppendsUserThenAssistant(t *testing.T) {
	sched := clock.NewManual()
	ctrl := newController(t, sched)

	require.True(t, ctrl.Submit(exampleQuestion))

	state := ctrl.State()
	require.Len(t, state.Messages, 1)
	assert.True(t, state.AwaitingResponse)
	assert.Equal(t, domain.RoleUser, state.Messages[0].Role)
	assert.Equal(t, exampleQuestion, state.Messages[0].Text)
	assert.Empty(t, state.Messages[0].Citations)

	// nothing is delivered before the delay elapses
	assert.Equal(t, 0, sched.Advance(conversation.DefaultDelay-time.Millisecond))
	assert.Len(t, ctrl.State().Messages, 1)

	assert.Equal(t, 1, sched.Advance(time.Millisecond))

	state = ctrl.State()
	require.Len(t, state.Messages, 2)
	assert.False(t, state.AwaitingResponse)

	reply := state.Messages[1]
	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.Contains(t, reply.Text, "Section 166 of the Motor Vehicles Act")
	require.Len(t, reply.Citations, 1)
	assert.Equal(t, "Para 7", reply.Citations[0].ParagraphLabel)
	assert.Equal(t, "Dani_Devi_v_Pritam_Singh.pdf", reply.Citations[0].SourceID)
	assert.NotEqual(t, state.Messages[0].ID, reply.ID)
}

func TestSubmitTrimsText(t *testing.T) {
	ctrl := newController(t, clock.Immediate{})

	require.True(t, ctrl.Submit("  what is a tort?\n"))

	state := ctrl.State()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "what is a tort?", state.Messages[0].Text)
	assert.Empty(t, state.Messages[1].Citations)
}

func TestSubmitRejectsBlank(t *testing.T) {
	sched := clock.NewManual()
	ctrl := newController(t, sched)

	for _, q := range []string{"", "   ", "\t\n"} {
		assert.False(t, ctrl.Submit(q))
	}

	assert.Empty(t, ctrl.State().Messages)
	assert.False(t, ctrl.AwaitingResponse())
	assert.Equal(t, 0, sched.Pending())
}

func TestSubmitRejectsWhilePending(t *testing.T) {
	sched := clock.NewManual()
	ctrl := newController(t, sched)

	require.True(t, ctrl.Submit("compensation"))
	assert.False(t, ctrl.Submit("another question"))
	assert.Len(t, ctrl.State().Messages, 1)
	assert.Equal(t, 1, sched.Pending())

	sched.RunAll()
	assert.Len(t, ctrl.State().Messages, 2)

	// Idle again, so the next query goes through.
	require.True(t, ctrl.Submit("another question"))
	sched.RunAll()
	assert.Len(t, ctrl.State().Messages, 4)
}

func TestAssistantNeverOutrunsUser(t *testing.T) {
	sched := clock.NewManual()
	ctrl := newController(t, sched)

	check := func() {
		state := ctrl.State()
		users, assistants := 0, 0
		for _, m := range state.Messages {
			if m.Role == domain.RoleUser {
				users++
			} else {
				assistants++
			}
		}
		require.LessOrEqual(t, assistants, users)
		if state.AwaitingResponse {
			require.Equal(t, assistants+1, users)
		} else {
			require.Equal(t, assistants, users)
		}
	}

	for i := 0; i < 5; i++ {
		ctrl.Submit(fmt.Sprintf("question %d", i))
		check()
		ctrl.Submit("ignored")
		check()
		sched.RunAll()
		check()
	}
}

func TestSelectAndDismissLeaveLogAlone(t *testing.T) {
	ctrl := newController(t, clock.Immediate{})
	require.True(t, ctrl.Submit(exampleQuestion))

	before := ctrl.State()
	require.Nil(t, before.ActiveCitation)
	citation := before.Messages[1].Citations[0]

	ctrl.SelectCitation(citation)
	state := ctrl.State()
	require.NotNil(t, state.ActiveCitation)
	assert.Equal(t, "/Dani Vs Pritam (Future 10 at age 54-55).pdf", state.ActiveCitation.SourceLocator)
	assert.Equal(t, "Para 7", state.ActiveCitation.ParagraphLabel)
	assert.Equal(t, before.Messages, state.Messages)

	ctrl.DismissViewer()
	state = ctrl.State()
	assert.Nil(t, state.ActiveCitation)
	assert.Equal(t, before.Messages, state.Messages)
}

func TestStateIsASnapshot(t *testing.T) {
	ctrl := newController(t, clock.Immediate{})
	require.True(t, ctrl.Submit("compensation"))

	state := ctrl.State()
	state.Messages[1].Text = "changed"
	state.Messages[1].Citations[0].QuotedText = "changed"

	fresh := ctrl.State()
	assert.NotEqual(t, "changed", fresh.Messages[1].Text)
	assert.NotEqual(t, "changed", fresh.Messages[1].Citations[0].QuotedText)
}

func TestSubscribeSeesEveryChange(t *testing.T) {
	sched := clock.NewManual()
	ctrl := newController(t, sched)

	var seen []domain.SessionState
	unsubscribe := ctrl.Subscribe(func(s domain.SessionState) { seen = append(seen, s) })

	ctrl.Submit("")
	require.True(t, ctrl.Submit(exampleQuestion))
	sched.RunAll()
	ctrl.SelectCitation(ctrl.State().Messages[1].Citations[0])
	ctrl.DismissViewer()
	ctrl.DismissViewer() // already closed, no change

	require.Len(t, seen, 4)
	assert.True(t, seen[0].AwaitingResponse)
	assert.Len(t, seen[0].Messages, 1)
	assert.False(t, seen[1].AwaitingResponse)
	assert.Len(t, seen[1].Messages, 2)
	assert.NotNil(t, seen[2].ActiveCitation)
	assert.Nil(t, seen[3].ActiveCitation)

	unsubscribe()
	unsubscribe()
	ctrl.Submit("again")
	assert.Len(t, seen, 4)
	sched.RunAll()
}

func TestWait(t *testing.T) {
	t.Run("idle returns at once", func(t *testing.T) {
		ctrl := newController(t, clock.NewManual())
		require.NoError(t, ctrl.Wait(context.Background()))
	})

	t.Run("context ends first", func(t *testing.T) {
		sched := clock.NewManual()
		ctrl := newController(t, sched)
		require.True(t, ctrl.Submit("compensation"))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := ctrl.Wait(ctx)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		sched.RunAll()
	})

	t.Run("real scheduler", func(t *testing.T) {
		ctrl, err := conversation.NewController("s2", newMatcher(t), conversation.ControllerOptions{
			Scheduler: clock.Real{},
			Delay:     5 * time.Millisecond,
			Store:     memory.NewMessageStore(),
		})
		require.NoError(t, err)

		require.True(t, ctrl.Submit("motor vehicle"))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, ctrl.Wait(ctx))

		state := ctrl.State()
		assert.False(t, state.AwaitingResponse)
		assert.Len(t, state.Messages, 2)
	})
}

func TestConcurrentSubmitAcceptsOne(t *testing.T) {
	sched := clock.NewManual()
	ctrl, err := conversation.NewController("s3", newMatcher(t), conversation.ControllerOptions{
		Scheduler: sched,
		Store:     memory.NewMessageStore(),
	})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if ctrl.Submit(fmt.Sprintf("q%d", i)) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Len(t, ctrl.State().Messages, 1)
	sched.RunAll()
	assert.Len(t, ctrl.State().Messages, 2)
}

func TestNewControllerValidates(t *testing.T) {
	m := newMatcher(t)
	store := memory.NewMessageStore()

	_, err := conversation.NewController("x", nil, conversation.ControllerOptions{Scheduler: clock.Immediate{}, Store: store})
	assert.Error(t, err)

	_, err = conversation.NewController("x", m, conversation.ControllerOptions{Scheduler: clock.Immediate{}})
	assert.Error(t, err)

	_, err = conversation.NewController("x", m, conversation.ControllerOptions{Store: store})
	assert.Error(t, err)

	_, err = conversation.NewController("x", m, conversation.ControllerOptions{Scheduler: clock.Immediate{}, Store: store, Delay: -time.Second})
	assert.Error(t, err)
}
