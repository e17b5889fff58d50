package plant_test

import (
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/plant"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

func TestPlantSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Plant Suite")
}

var _ = Describe("a box resting on the ground", func() {
	const (
		dt        = 1e-3
		mass      = 1.0
		allowance = 1e-3
	)

	var (
		p   *plant.Plant
		ctx *plant.Context
		box tree.BodyIndex
	)

	BeforeEach(func() {
		var err error
		p, err = plant.New(dt)
		Expect(err).NotTo(HaveOccurred())

		box, err = p.AddBody("box", tree.DefaultModelInstance, tree.SolidBox(mass, 0.2, 0.2, 0.2))
		Expect(err).NotTo(HaveOccurred())

		friction := geometry.CoulombFriction{Static: 0.9, Dynamic: 0.6}
		_, err = p.RegisterCollisionGeometry(tree.WorldBodyIndex, "ground",
			geometry.HalfSpace{}, spatial.IdentityPose(),
			geometry.DefaultProximityProperties(friction))
		Expect(err).NotTo(HaveOccurred())
		_, err = p.RegisterCollisionGeometry(box, "box_collision",
			geometry.Box{Lx: 0.2, Ly: 0.2, Lz: 0.2}, spatial.IdentityPose(),
			geometry.DefaultProximityProperties(friction))
		Expect(err).NotTo(HaveOccurred())

		Expect(p.SetPenetrationAllowance(allowance)).To(Succeed())
		Expect(p.Finalize()).To(Succeed())

		ctx, err = p.CreateDefaultContext()
		Expect(err).NotTo(HaveOccurred())
		ctx.ConnectDefaultQuery()

		// Rest the box exactly at the penetration allowance: bottom face at
		// z = -allowance.
		q := ctx.Positions()
		q[6] = 0.1 - allowance
		Expect(ctx.SetPositions(q)).To(Succeed())
	})

	It("carries its weight through the contact normal force", func() {
		results, err := p.EvalContactResults(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(results.NumPointPairContacts()).To(BeNumerically(">", 0))

		var fz float64
		for _, info := range results.PointPairs {
			fz += info.ForceOnB[2]
		}
		// The estimator is a heuristic; equilibrium holds to a loose
		// relative tolerance, not machine precision.
		Expect(fz).To(BeNumerically("~", mass*9.81, 0.05*mass*9.81))
	})

	It("stays near rest over a short rollout", func() {
		for i := 0; i < 200; i++ {
			Expect(p.Step(ctx)).To(Succeed())
		}
		v := ctx.Velocities()
		Expect(math.Abs(v[5])).To(BeNumerically("<", 0.05))

		q := ctx.Positions()
		Expect(q[6]).To(BeNumerically("~", 0.1-allowance, 0.01))
	})

	It("reports the contact through the generalized force port", func() {
		tau, err := p.EvalGeneralizedContactForces(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(tau[5]).To(BeNumerically("~", mass*9.81, 0.05*mass*9.81))
	})
})

var _ = Describe("actuation input exclusivity", func() {
	It("rejects connecting both the aggregate and a per-instance input", func() {
		p, err := plant.New(1e-3)
		Expect(err).NotTo(HaveOccurred())

		arm, err := p.AddBody("arm", tree.DefaultModelInstance,
			tree.SpatialInertia{Mass: 1, Com: spatial.V3(0, 0, -0.5)})
		Expect(err).NotTo(HaveOccurred())
		j, err := p.AddJoint("pivot", tree.WorldBodyIndex, arm,
			tree.RevoluteKind{Axis: spatial.V3(0, 1, 0)}, spatial.IdentityPose())
		Expect(err).NotTo(HaveOccurred())
		_, err = p.AddJointActuator("motor", j, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Finalize()).To(Succeed())

		ctx, err := p.CreateDefaultContext()
		Expect(err).NotTo(HaveOccurred())
		ctx.FixActuationInput([]float64{1})
		ctx.FixInstanceActuationInput(tree.DefaultModelInstance, []float64{1})

		_, err = p.CalcNonContactForces(ctx, true)
		Expect(err).To(MatchError(plant.ErrBothActuationInputs))
	})
})

var _ = Describe("contact results without collision geometry", func() {
	It("is empty regardless of the query connection", func() {
		p, err := plant.New(1e-3)
		Expect(err).NotTo(HaveOccurred())
		_, err = p.AddBody("box", tree.DefaultModelInstance, tree.SolidBox(1, 0.1, 0.1, 0.1))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Finalize()).To(Succeed())

		ctx, err := p.CreateDefaultContext()
		Expect(err).NotTo(HaveOccurred())

		// Once without a query connection, once with.
		results, err := p.EvalContactResults(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(results.NumPointPairContacts()).To(BeZero())

		ctx.ConnectDefaultQuery()
		results, err = p.EvalContactResults(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(results.NumPointPairContacts()).To(BeZero())
		Expect(results.NumHydroelasticContacts()).To(BeZero())
	})
})

var _ = Describe("hydroelastic contact with point fallback", func() {
	It("produces surface contact for a sphere and point contact for a box", func() {
		p, err := plant.New(1e-3)
		Expect(err).NotTo(HaveOccurred())

		friction := geometry.CoulombFriction{Static: 0.9, Dynamic: 0.6}
		ball, err := p.AddBody("ball", tree.DefaultModelInstance, tree.SolidSphere(1, 0.5))
		Expect(err).NotTo(HaveOccurred())
		box, err := p.AddBody("box", tree.DefaultModelInstance, tree.SolidBox(1, 0.2, 0.2, 0.2))
		Expect(err).NotTo(HaveOccurred())

		_, err = p.RegisterCollisionGeometry(tree.WorldBodyIndex, "ground",
			geometry.HalfSpace{}, spatial.IdentityPose(),
			geometry.DefaultProximityProperties(friction))
		Expect(err).NotTo(HaveOccurred())
		_, err = p.RegisterCollisionGeometry(ball, "ball_collision",
			geometry.Sphere{Radius: 0.5}, spatial.IdentityPose(),
			geometry.DefaultProximityProperties(friction))
		Expect(err).NotTo(HaveOccurred())
		_, err = p.RegisterCollisionGeometry(box, "box_collision",
			geometry.Box{Lx: 0.2, Ly: 0.2, Lz: 0.2}, spatial.IdentityPose(),
			geometry.DefaultProximityProperties(friction))
		Expect(err).NotTo(HaveOccurred())

		Expect(p.SetContactModel(plant.ContactModelHydroelasticWithFallback)).To(Succeed())
		Expect(p.Finalize()).To(Succeed())

		ctx, err := p.CreateDefaultContext()
		Expect(err).NotTo(HaveOccurred())
		ctx.ConnectDefaultQuery()

		// Both bodies slightly penetrate the ground, well separated in x.
		q := ctx.Positions()
		q[6] = 0.499 // ball center height
		q[7+4], q[7+6] = 5.0, 0.099
		Expect(ctx.SetPositions(q)).To(Succeed())

		results, err := p.EvalContactResults(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(results.NumHydroelasticContacts()).To(Equal(1), "sphere pair has a surface")
		Expect(results.NumPointPairContacts()).To(Equal(1), "box pair falls back to a point")

		// Both resultants push their bodies up.
		Expect(results.Hydroelastic[0].ForceOnMAtCentroid.Trans[2]).To(BeNumerically(">", 0))
		Expect(results.PointPairs[0].ForceOnB[2]).To(BeNumerically(">", 0))
	})
})
