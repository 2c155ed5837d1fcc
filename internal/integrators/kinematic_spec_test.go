package integrators_test

import (
	"math"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/integrators"
)

var _ = Describe("Kinematic", func() {
	var k *integrators.Kinematic

	BeforeEach(func() {
		k = integrators.NewKinematic(dynamo.Pose{})
	})

	Describe("state updates", func() {
		It("starts from a zero kinematic state", func() {
			Expect(k.KinematicState()).To(Equal(dynamo.KinematicState{}))
		})

		It("makes an update visible to the next step", func() {
			k.SetKinematicState(dynamo.KinematicState{Vz: 4})
			Expect(k.Step(0.25).Z).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("keeps only the last update", func() {
			k.SetKinematicState(dynamo.KinematicState{Vx: 1})
			k.SetKinematicState(dynamo.KinematicState{Vy: 1})
			p := k.Step(1)
			Expect(p.X).To(BeNumerically("~", 0, 1e-9))
			Expect(p.Y).To(BeNumerically("~", 1, 1e-6))
		})
	})

	Describe("rotation", func() {
		stepN := func(state dynamo.KinematicState, n int, dt float64) dynamo.Pose {
			obj := integrators.NewKinematic(dynamo.Pose{})
			obj.SetKinematicState(state)
			var p dynamo.Pose
			for i := 0; i < n; i++ {
				p = obj.Step(dt)
			}
			return p
		}

		DescribeTable("n small steps approximate one large step",
			func(state dynamo.KinematicState, eps float64) {
				const n = 100
				const dt = 0.001
				small := stepN(state, n, dt)
				large := stepN(state, 1, n*dt)

				Expect(small.Roll).To(BeNumerically("~", large.Roll, eps))
				Expect(small.Pitch).To(BeNumerically("~", large.Pitch, eps))
				Expect(small.Yaw).To(BeNumerically("~", large.Yaw, eps))
			},
			Entry("yaw only", dynamo.KinematicState{YawRate: 0.8}, 1e-5),
			Entry("roll only", dynamo.KinematicState{RollRate: -0.5}, 1e-5),
			Entry("all axes", dynamo.KinematicState{RollRate: 0.2, PitchRate: 0.1, YawRate: 0.3}, 1e-3),
		)

		It("keeps yaw wrapped to [-pi, pi]", func() {
			k.SetKinematicState(dynamo.KinematicState{YawRate: 1})
			for i := 0; i < 1000; i++ {
				p := k.Step(0.01)
				Expect(math.Abs(float64(p.Yaw))).To(BeNumerically("<=", math.Pi+1e-6))
			}
		})
	})

	Describe("determinism", func() {
		type op struct {
			state dynamo.KinematicState
			dt    float64
		}
		script := []op{
			{dynamo.KinematicState{Vx: 1, YawRate: 0.3}, 0.01},
			{dynamo.KinematicState{Vx: 1, YawRate: 0.3}, 0.01},
			{dynamo.KinematicState{Vy: -0.5, RollRate: 0.7, PitchRate: -0.2}, 0.02},
			{dynamo.KinematicState{Vz: 2, PitchRate: 0.4, YawRate: -1}, 0.01},
			{dynamo.KinematicState{}, 0.05},
		}

		replay := func() dynamo.Pose {
			obj := integrators.NewKinematic(dynamo.Pose{X: 1, Yaw: 0.5})
			var p dynamo.Pose
			for rep := 0; rep < 50; rep++ {
				for _, o := range script {
					obj.SetKinematicState(o.state)
					p = obj.Step(o.dt)
				}
			}
			return p
		}

		It("reproduces the same final pose bit for bit", func() {
			first := replay()
			for i := 0; i < 5; i++ {
				Expect(replay()).To(Equal(first))
			}
		})

		It("accumulates rather than repeating the same result", func() {
			k.SetKinematicState(dynamo.KinematicState{Vx: 1})
			first := k.Step(0.1)
			second := k.Step(0.1)
			Expect(second).NotTo(Equal(first))
		})
	})

	Describe("concurrent updates", func() {
		It("never observes a torn kinematic state", func() {
			const writers = 4
			const updates = 5000

			var wg sync.WaitGroup
			var done atomic.Bool
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer GinkgoRecover()
					defer wg.Done()
					for i := 0; i < updates; i++ {
						v := float32(w*updates + i)
						k.SetKinematicState(dynamo.KinematicState{
							Vx: v, Vy: v, Vz: v,
							RollRate: v, PitchRate: v, YawRate: v,
						})
					}
				}(w)
			}

			var torn atomic.Int64
			readers := sync.WaitGroup{}
			readers.Add(1)
			go func() {
				defer GinkgoRecover()
				defer readers.Done()
				for !done.Load() {
					s := k.KinematicState()
					if s.Vx != s.Vy || s.Vy != s.Vz || s.Vz != s.RollRate ||
						s.RollRate != s.PitchRate || s.PitchRate != s.YawRate {
						torn.Add(1)
					}
				}
			}()

			// Equal linear velocities on every axis keep x == y == z only if
			// each step saw a whole state.
			obj := integrators.NewKinematic(dynamo.Pose{})
			stepperDone := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(stepperDone)
				for !done.Load() {
					p := obj.Step(1e-6)
					if p.X != p.Y || p.Y != p.Z {
						torn.Add(1)
					}
				}
			}()
			var objWriters sync.WaitGroup
			for w := 0; w < writers; w++ {
				objWriters.Add(1)
				go func(w int) {
					defer GinkgoRecover()
					defer objWriters.Done()
					for i := 0; i < updates; i++ {
						v := float32(w + i%7)
						obj.SetKinematicState(dynamo.KinematicState{Vx: v, Vy: v, Vz: v})
					}
				}(w)
			}

			wg.Wait()
			objWriters.Wait()
			done.Store(true)
			readers.Wait()
			<-stepperDone

			Expect(torn.Load()).To(BeZero())
		})
	})
})
