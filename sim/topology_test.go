package sim

import (
	"bytes"
	"errors"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Topology", func() {
	var (
		mockCtrl *gomock.Controller
		logBuf   *bytes.Buffer
		topo     *Topology
		rec      *eventRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		logBuf = new(bytes.Buffer)
		rec = &eventRecorder{}
		topo = MakeTopologyBuilder().
			WithoutWireless().
			WithSeed(1).
			WithLogger(zerolog.New(logBuf)).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("adding nodes", func() {
		It("should assign increasing ids", func() {
			a := topo.AddNode(NewNode())
			b := topo.AddNode(nil)

			Expect(a.ID()).To(Equal(0))
			Expect(b.ID()).To(Equal(1))
			Expect(b.Model()).To(Equal(DefaultModel))
			Expect(topo.Nodes()).To(Equal([]*Node{a, b}))
		})

		It("should keep preset ids and never reuse them", func() {
			n := NewNode()
			n.SetID(5)
			topo.AddNode(n)
			o := topo.AddNode(NewNode())

			Expect(n.ID()).To(Equal(5))
			Expect(o.ID()).To(Equal(6))
		})

		It("should reassign ids that are already taken", func() {
			first := NewNode()
			first.SetID(5)
			topo.AddNode(first)

			second := NewNode()
			second.SetID(5)
			topo.AddNode(second)

			Expect(nodeIDs(topo.Nodes())).To(Equal([]int{5, 6}))
			Expect(topo.FindNodeByID(5)).To(BeIdenticalTo(first))
			Expect(topo.FindNodeByID(6)).To(BeIdenticalTo(second))
			Expect(logBuf.String()).To(ContainSubstring("node id already taken"))
		})

		It("should move nodes placed again", func() {
			wireless := MakeTopologyBuilder().WithSeed(1).Build()
			a := wireless.AddNodeAt(Point{X: 0}, nil)
			b := wireless.AddNodeAt(Point{X: 50}, nil)
			Expect(a.LinkTo(b)).NotTo(BeNil())

			Expect(wireless.AddNodeAt(Point{X: 500}, a)).To(BeIdenticalTo(a))

			Expect(a.Location()).To(Equal(Point{X: 500}))
			Expect(a.LinkTo(b)).To(BeNil())
			Expect(wireless.NodeCount()).To(Equal(2))
			expectDuality(wireless)
		})

		It("should fill unset ranges from the defaults", func() {
			topo.SetCommunicationRange(42)
			topo.SetSensingRange(7)

			n := NewNode()
			n.SetSensingRange(3)
			topo.AddNode(n)

			Expect(n.CommunicationRange()).To(Equal(42.0))
			Expect(n.SensingRange()).To(Equal(3.0))
			Expect(n.IsWirelessEnabled()).To(BeFalse())
			Expect(n.Topology()).To(BeIdenticalTo(topo))
		})

		It("should notify topology listeners", func() {
			listener := NewMockTopologyListener(mockCtrl)
			topo.AddTopologyListener(listener)
			n := NewNode()

			listener.EXPECT().OnNodeAdded(n)

			topo.AddNode(n)
		})

		It("should start nodes joining a started topology", func() {
			topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
			Expect(rec.events).To(BeEmpty())

			topo.Start()
			topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))

			Expect(rec.events).To(Equal([]string{"0:start", "1:start"}))
		})

		It("should leave the clock unpaused after inserting", func() {
			topo.AddNode(NewNode())

			Expect(topo.Clock().PauseCount()).To(Equal(0))
		})

		It("should place nodes within the dimensions", func() {
			topo.SetDimensions(50, 20)

			for i := 0; i < 20; i++ {
				n := topo.AddNodeRandom(nil)
				Expect(n.Location().X).To(BeNumerically(">=", 0))
				Expect(n.Location().X).To(BeNumerically("<", 50))
				Expect(n.Location().Y).To(BeNumerically("<", 20))
			}
		})
	})

	Context("node models", func() {
		It("should build nodes from registered factories", func() {
			topo.SetNodeModel("robot", func() (*Node, error) {
				n := NewNode()
				n.SetCommunicationRange(10)
				return n, nil
			})

			n := topo.NewNodeOfModel("robot")

			Expect(n.Model()).To(Equal("robot"))
			Expect(n.CommunicationRange()).To(Equal(10.0))
			Expect(topo.ModelNames()).To(Equal([]string{DefaultModel, "robot"}))
		})

		It("should fall back to a generic node when the factory fails", func() {
			topo.SetNodeModel("broken", func() (*Node, error) {
				return nil, errors.New("no constructor")
			})

			n := topo.NewNodeOfModel("broken")

			Expect(n).NotTo(BeNil())
			Expect(n.Model()).To(Equal(DefaultModel))
			Expect(logBuf.String()).To(ContainSubstring("node factory failed"))
			Expect(logBuf.String()).To(ContainSubstring("no constructor"))
		})

		It("should fall back to a generic node for unknown models", func() {
			n := topo.NewNodeOfModel("ghost")

			Expect(n).NotTo(BeNil())
			Expect(logBuf.String()).To(ContainSubstring("unknown node model"))
		})
	})

	Context("links", func() {
		var a, b *Node

		BeforeEach(func() {
			a = topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
			b = topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
		})

		It("should create both arcs for an undirected link", func() {
			l := NewLink(a, b)
			topo.AddLink(l)

			Expect(topo.Links()).To(Equal([]*Link{l}))
			Expect(topo.DirectedLinks()).To(HaveLen(2))
			Expect(a.DirectedLinkTo(b)).NotTo(BeNil())
			Expect(b.DirectedLinkTo(a)).NotTo(BeNil())
			Expect(a.Neighbors()).To(Equal([]*Node{b}))
			Expect(a.LinkTo(b)).To(BeIdenticalTo(l))
			expectDuality(topo)
		})

		It("should synthesize the edge when the reverse arc closes", func() {
			topo.AddLink(NewDirectedLink(a, b))
			Expect(topo.Links()).To(BeEmpty())
			Expect(topo.HasDirectedLinks()).To(BeTrue())

			topo.AddLink(NewDirectedLink(b, a))
			Expect(topo.Links()).To(HaveLen(1))
			Expect(topo.HasDirectedLinks()).To(BeFalse())
			expectDuality(topo)
		})

		It("should notify arcs before the edge and nodes before listeners",
			func() {
				topo.AddConnectivityListener(
					recordingConnectivityListener{rec, "edges"})
				topo.AddDirectedConnectivityListener(
					recordingConnectivityListener{rec, "arcs"})

				topo.AddLink(NewLink(a, b))

				Expect(rec.events).To(Equal([]string{
					"0:arc-added 0 --> 1",
					"1:arc-added 0 --> 1",
					"arcs:added 0 --> 1",
					"1:arc-added 1 --> 0",
					"0:arc-added 1 --> 0",
					"arcs:added 1 --> 0",
					"0:link-added 0 <--> 1",
					"1:link-added 0 <--> 1",
					"edges:added 0 <--> 1",
				}))
			})

		It("should not notify links that already exist", func() {
			edges := NewMockConnectivityListener(mockCtrl)
			arcs := NewMockConnectivityListener(mockCtrl)
			topo.AddConnectivityListener(edges)
			topo.AddDirectedConnectivityListener(arcs)

			edges.EXPECT().OnLinkAdded(gomock.Any()).Times(1)
			arcs.EXPECT().OnLinkAdded(gomock.Any()).Times(2)

			topo.AddLink(NewLink(a, b))
			topo.AddLink(NewLink(a, b))
			topo.AddLink(NewLink(b, a).WithMode(Wireless))
			topo.AddLink(NewDirectedLink(a, b))

			Expect(topo.Links()).To(HaveLen(1))
			Expect(topo.DirectedLinks()).To(HaveLen(2))
			Expect(topo.Link(a, b).Mode).To(Equal(Wireless))
			Expect(a.DirectedLinkTo(b).Mode).To(Equal(Wired))
		})

		It("should update the structure silently", func() {
			edges := NewMockConnectivityListener(mockCtrl)
			topo.AddConnectivityListener(edges)

			topo.AddLinkSilently(NewLink(a, b))

			Expect(topo.Links()).To(HaveLen(1))
			Expect(rec.events).To(BeEmpty())
		})

		It("should remove the edge along with one of its arcs", func() {
			topo.AddLink(NewLink(a, b))

			topo.RemoveLink(NewDirectedLink(a, b))

			Expect(topo.Links()).To(BeEmpty())
			Expect(topo.DirectedLinks()).To(HaveLen(1))
			Expect(b.DirectedLinkTo(a)).NotTo(BeNil())
			expectDuality(topo)
		})

		It("should remove both arcs with an undirected link", func() {
			topo.AddLink(NewLink(a, b))

			topo.RemoveLink(NewLink(b, a))

			Expect(topo.Links()).To(BeEmpty())
			Expect(topo.DirectedLinks()).To(BeEmpty())
		})

		It("should notify removals with the stored links", func() {
			l := NewLink(a, b)
			topo.AddLink(l)
			edges := NewMockConnectivityListener(mockCtrl)
			topo.AddConnectivityListener(edges)

			edges.EXPECT().OnLinkRemoved(l)

			topo.RemoveLink(NewLink(b, a))
		})

		It("should panic when the arc to remove is missing", func() {
			topo.AddLink(NewDirectedLink(a, b))

			Expect(func() { topo.RemoveLink(NewLink(a, b)) }).
				To(PanicWith(MatchError(ErrLinkNotFound)))
			Expect(func() { topo.RemoveLink(NewDirectedLink(b, a)) }).
				To(PanicWith(MatchError(ErrLinkNotFound)))
		})

		It("should refuse links to nodes outside the topology", func() {
			Expect(func() { topo.AddLink(NewLink(a, NewNode())) }).
				To(PanicWith(MatchError(ErrNodeNotFound)))
		})

		It("should clear all links", func() {
			c := topo.AddNode(NewNode())
			topo.AddLink(NewLink(a, b))
			topo.AddLink(NewDirectedLink(b, c))

			topo.ClearLinks()

			Expect(topo.Links()).To(BeEmpty())
			Expect(topo.DirectedLinks()).To(BeEmpty())
		})

		It("should build a graph of the arcs", func() {
			c := topo.AddNode(NewNode())
			topo.AddLink(NewDirectedLink(a, b))
			topo.AddLink(NewDirectedLink(b, c))

			Expect(topo.PathExists(a, c)).To(BeTrue())
			Expect(topo.PathExists(c, a)).To(BeFalse())
			Expect(topo.Graph().Edges().Len()).To(Equal(2))
		})
	})

	Context("duality", func() {
		It("should hold for any sequence of link operations", func() {
			r := rand.New(rand.NewPCG(7, 11))
			nodes := make([]*Node, 6)
			for i := range nodes {
				nodes[i] = topo.AddNode(NewNode())
			}

			for i := 0; i < 500; i++ {
				x := nodes[r.IntN(len(nodes))]
				y := nodes[r.IntN(len(nodes))]
				if x == y {
					continue
				}

				switch r.IntN(4) {
				case 0:
					topo.AddLink(NewDirectedLink(x, y))
				case 1:
					topo.AddLink(NewLink(x, y))
				case 2:
					if x.DirectedLinkTo(y) != nil {
						topo.RemoveLink(NewDirectedLink(x, y))
					}
				case 3:
					if x.DirectedLinkTo(y) != nil && y.DirectedLinkTo(x) != nil {
						topo.RemoveLink(NewLink(x, y))
					}
				}

				expectDuality(topo)
			}
		})
	})

	Context("removing nodes", func() {
		It("should detach a node completely", func() {
			topo = MakeTopologyBuilder().
				WithSensingRange(50).
				WithSeed(1).
				Build()
			other := topo.AddNodeAt(Point{X: 20, Y: 10},
				NewNode().WithBehavior(recordingBehavior{rec}))

			n := NewNode()
			n.SetID(5)
			topo.AddNodeAt(Point{X: 10, Y: 10}, n)
			Expect(other.SensedNodes()).To(ContainElement(n))
			Expect(topo.Links()).To(HaveLen(1))

			topo.RemoveNode(n)

			Expect(topo.Nodes()).NotTo(ContainElement(n))
			Expect(n.OutLinks()).To(BeEmpty())
			Expect(n.Topology()).To(BeNil())
			Expect(topo.DirectedLinks()).To(BeEmpty())
			Expect(other.InNeighbors()).To(BeEmpty())
			Expect(other.SensedNodes()).NotTo(ContainElement(n))
			Expect(rec.events).To(ContainElement("0:sensing-out 5"))
		})

		It("should stop the node and notify listeners", func() {
			listener := NewMockTopologyListener(mockCtrl)
			n := topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
			topo.AddTopologyListener(listener)

			listener.EXPECT().OnNodeRemoved(n)

			topo.RemoveNode(n)

			Expect(rec.events).To(Equal([]string{"0:stop"}))
		})

		It("should remove links touching the node", func() {
			a := topo.AddNode(NewNode())
			b := topo.AddNode(NewNode())
			c := topo.AddNode(NewNode())
			topo.AddLink(NewLink(a, b))
			topo.AddLink(NewDirectedLink(c, a))
			topo.AddLink(NewDirectedLink(a, c))
			topo.AddLink(NewDirectedLink(b, c))

			topo.RemoveNode(a)

			Expect(topo.DirectedLinks()).To(HaveLen(1))
			Expect(topo.Links()).To(BeEmpty())
			expectDuality(topo)
		})

		It("should ignore nodes that are not in the topology", func() {
			topo.AddNode(NewNode())

			topo.RemoveNode(NewNode())
			topo.RemoveNode(nil)

			Expect(topo.NodeCount()).To(Equal(1))
			Expect(logBuf.String()).To(ContainSubstring("not in the topology"))
		})

		It("should clear the topology and reset ids", func() {
			topo.AddNode(NewNode())
			topo.AddNode(NewNode())

			topo.Clear()
			n := topo.AddNode(NewNode())

			Expect(topo.Nodes()).To(Equal([]*Node{n}))
			Expect(n.ID()).To(Equal(0))
		})
	})

	Context("queries", func() {
		It("should log through the logger it was built with", func() {
			topo.Logger().Warn().Int("id", 3).Msg("checking the logger")

			Expect(logBuf.String()).To(ContainSubstring(`"message":"checking the logger"`))
			Expect(logBuf.String()).To(ContainSubstring(`"level":"warn"`))
		})

		It("should find nodes by id", func() {
			n := topo.AddNode(NewNode())

			Expect(topo.FindNodeByID(0)).To(BeIdenticalTo(n))
			Expect(topo.FindNodeByID(3)).To(BeNil())
		})

		It("should shuffle ids without losing any", func() {
			for i := 0; i < 10; i++ {
				topo.AddNode(NewNode())
			}

			topo.ShuffleNodeIDs()

			Expect(nodeIDs(topo.Nodes())).To(
				ConsistOf(0, 1, 2, 3, 4, 5, 6, 7, 8, 9))
		})

		It("should select nodes", func() {
			n := topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
			var selected *Node
			topo.AddSelectionListener(SelectionListenerFunc(func(s *Node) {
				selected = s
			}))

			topo.SelectNode(n)

			Expect(selected).To(BeIdenticalTo(n))
			Expect(topo.SelectedNode()).To(BeIdenticalTo(n))
			Expect(rec.events).To(Equal([]string{"0:selected"}))
		})
	})

	Context("listeners", func() {
		It("should iterate over a snapshot of the listeners", func() {
			calls := 0
			lateCalls := 0
			var sub *Subscription
			sub = topo.AddMovementListener(MovementListenerFunc(func(*Node) {
				calls++
				sub.Cancel()
				topo.AddMovementListener(MovementListenerFunc(func(*Node) {
					lateCalls++
				}))
			}))
			n := topo.AddNode(NewNode())

			n.Translate(1, 0)
			Expect(calls).To(Equal(1))
			Expect(lateCalls).To(Equal(0))

			n.Translate(1, 0)
			Expect(calls).To(Equal(1))
			Expect(lateCalls).To(Equal(1))
		})

		It("should call the moving node before the listeners", func() {
			n := topo.AddNode(NewNode().WithBehavior(recordingBehavior{rec}))
			topo.AddMovementListener(MovementListenerFunc(func(m *Node) {
				rec.add("listener:move %d", m.ID())
			}))

			n.SetLocation(Point{X: 3, Y: 4})

			Expect(rec.events).To(Equal([]string{"0:move", "listener:move 0"}))
		})

		It("should invoke hooks", func() {
			hook := NewMockHook(mockCtrl)
			topo.AcceptHook(hook)

			hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosNodeAdded))
				Expect(ctx.Domain).To(BeIdenticalTo(topo))
			})

			topo.AddNode(NewNode())
		})
	})
})
