package sim

import (
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Clock", func() {
	var (
		mockCtrl *gomock.Controller
		topo     *Topology
		rec      *eventRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		rec = &eventRecorder{}
		topo = MakeTopologyBuilder().WithoutWireless().WithSeed(1).Build()
	})

	AfterEach(func() {
		topo.Stop()
		mockCtrl.Finish()
	})

	It("should not run rounds before start", func() {
		Expect(topo.IsStarted()).To(BeFalse())
		Expect(topo.Clock().Advance(3)).To(Equal(0))
		Expect(topo.Time()).To(Equal(0))
	})

	It("should count rounds once started", func() {
		topo.Start()

		Expect(topo.IsRunning()).To(BeTrue())
		Expect(topo.Clock().Advance(3)).To(Equal(3))
		Expect(topo.Time()).To(Equal(3))
	})

	It("should nest pauses", func() {
		topo.Start()

		for i := 0; i < 4; i++ {
			topo.Pause()
		}
		for i := 0; i < 3; i++ {
			topo.Resume()
		}

		Expect(topo.IsRunning()).To(BeFalse())
		Expect(topo.Clock().Tick()).To(BeFalse())

		topo.Resume()

		Expect(topo.IsRunning()).To(BeTrue())
		Expect(topo.Clock().Tick()).To(BeTrue())
	})

	It("should ignore extra resumes", func() {
		topo.Start()
		topo.Resume()
		topo.Pause()

		Expect(topo.IsRunning()).To(BeFalse())
	})

	It("should run a single round per step", func() {
		topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
		topo.Start()
		topo.Pause()

		topo.Step()
		Expect(topo.Clock().Advance(5)).To(Equal(1))
		Expect(topo.IsRunning()).To(BeFalse())

		topo.Step()
		Expect(topo.Clock().Advance(5)).To(Equal(1))
		Expect(topo.Time()).To(Equal(2))
	})

	It("should start the topology on step", func() {
		topo.Step()

		Expect(topo.IsStarted()).To(BeTrue())
		Expect(topo.Clock().Advance(5)).To(Equal(1))
		Expect(topo.IsRunning()).To(BeFalse())
	})

	It("should reset time without touching nodes", func() {
		n := topo.AddNodeAt(Point{X: 1, Y: 2}, nil)
		topo.Start()
		topo.Clock().Advance(4)

		topo.ResetTime()

		Expect(topo.Time()).To(Equal(0))
		Expect(n.Location()).To(Equal(Point{X: 1, Y: 2}))
	})

	It("should call clock listeners on multiples of their period", func() {
		var every, third []int
		topo.AddClockListener(ClockListenerFunc(func() {
			every = append(every, topo.Time())
		}), 1)
		topo.AddClockListener(ClockListenerFunc(func() {
			third = append(third, topo.Time())
		}), 3)
		topo.Start()

		topo.Clock().Advance(7)

		Expect(every).To(Equal([]int{0, 1, 2, 3, 4, 5, 6}))
		Expect(third).To(Equal([]int{0, 3, 6}))
	})

	It("should stop calling cancelled clock listeners", func() {
		listener := NewMockClockListener(mockCtrl)
		sub := topo.AddClockListener(listener, 1)
		topo.Start()

		listener.EXPECT().OnClock().Times(2)
		topo.Clock().Advance(2)

		sub.Cancel()
		topo.Clock().Advance(2)
	})

	It("should order the work within a round", func() {
		a := topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
		b := topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
		topo.AddLink(NewLink(a, b))
		topo.AddClockListener(ClockListenerFunc(func() {
			rec.add("listener@%d", topo.Time())
		}), 1)
		topo.Start()
		a.Send(b, "hi")
		rec.events = nil

		topo.Clock().Tick()

		Expect(rec.events).To(Equal([]string{
			"0:preclock@0",
			"1:preclock@0",
			"1:message hi",
			"0:clock@0",
			"1:clock@0",
			"listener@0",
			"0:postclock@0",
			"1:postclock@0",
		}))
	})

	It("should remove dying nodes after the round", func() {
		var seen []int
		topo.AddClockListener(ClockListenerFunc(func() {
			seen = append(seen, topo.NodeCount())
		}), 1)
		n := topo.AddNode(nil)
		topo.AddNode(nil)
		topo.Start()

		n.Die()
		topo.Clock().Tick()

		Expect(seen).To(Equal([]int{2}))
		Expect(topo.Nodes()).NotTo(ContainElement(n))
	})

	It("should keep going when node logic panics", func() {
		topo.AddNode(NewNode().WithBehavior(panickingBehavior{}))
		topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
		failures := 0
		topo.AcceptHook(HookFunc(func(ctx HookCtx) {
			if ctx.Pos == HookPosNodeFailure {
				failures++
			}
		}))
		topo.Start()
		rec.events = nil

		Expect(topo.Clock().Tick()).To(BeTrue())
		Expect(failures).To(Equal(1))
		Expect(rec.events).To(ContainElement("1:clock@0"))
	})

	It("should restart nodes and start listeners", func() {
		starts := 0
		topo.AddStartListener(StartListenerFunc(func() { starts++ }))
		topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
		topo.Start()
		topo.Clock().Advance(3)

		topo.Restart()

		Expect(starts).To(Equal(2))
		Expect(topo.Time()).To(Equal(0))
		Expect(rec.events).To(HaveExactElements(
			"0:start",
			"0:preclock@0", "0:clock@0", "0:postclock@0",
			"0:preclock@1", "0:clock@1", "0:postclock@1",
			"0:preclock@2", "0:clock@2", "0:postclock@2",
			"0:start",
		))
	})

	It("should generate rounds in the background", func() {
		topo.Clock().SetTimeUnit(time.Millisecond)
		topo.Start()

		Eventually(topo.Time).Should(BeNumerically(">=", 5))

		topo.Pause()
		var frozen int
		topo.Do(func() { frozen = topo.Time() })
		Consistently(topo.Time, 20*time.Millisecond).Should(Equal(frozen))
	})

	It("should run Do between rounds", func() {
		var rounds atomic.Int32
		topo.AddClockListener(ClockListenerFunc(func() { rounds.Add(1) }), 1)
		topo.Clock().SetTimeUnit(time.Millisecond)
		topo.Start()
		Eventually(rounds.Load).Should(BeNumerically(">", 0))

		topo.Do(func() {
			before := rounds.Load()
			time.Sleep(5 * time.Millisecond)
			Expect(rounds.Load()).To(Equal(before))
			topo.AddNode(nil)
		})

		Expect(topo.NodeCount()).To(Equal(1))
	})

	Context("commands", func() {
		It("should list the commands valid in each state", func() {
			Expect(topo.Commands()).To(Equal([]string{CommandStart}))

			Expect(topo.ExecuteCommand(CommandStart)).To(Succeed())
			Expect(topo.Commands()).To(Equal(
				[]string{CommandPause, CommandRestart}))

			Expect(topo.ExecuteCommand(CommandPause)).To(Succeed())
			Expect(topo.Commands()).To(Equal(
				[]string{CommandResume, CommandStep, CommandRestart}))

			Expect(topo.ExecuteCommand(CommandResume)).To(Succeed())
			Expect(topo.IsRunning()).To(BeTrue())
		})

		It("should step through the command surface", func() {
			Expect(topo.ExecuteCommand(CommandStep)).To(Succeed())

			Expect(topo.Clock().Advance(3)).To(Equal(1))
		})

		It("should forward commands to listeners", func() {
			var got []string
			topo.AddCommandListener(CommandListenerFunc(func(c string) {
				got = append(got, c)
			}))
			topo.AddCommand("Reset colors")

			Expect(topo.ExecuteCommand("Reset colors")).To(Succeed())
			Expect(topo.ExecuteCommand(CommandStart)).To(Succeed())
			Expect(got).To(Equal([]string{"Reset colors", CommandStart}))
			Expect(topo.Commands()).To(ContainElement("Reset colors"))
		})

		It("should reject unknown commands", func() {
			Expect(topo.ExecuteCommand("Fly")).To(MatchError(ErrUnknownCommand))
		})
	})
})
