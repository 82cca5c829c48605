// Package zk is the circuit-backed proof builder: a Groth16 age-threshold
// proof over BN254 with a MiMC commitment enforced in-circuit. It plugs into
// the same Builder interface as the commitment backend; the ledger cannot
// tell them apart.
package zk

import (
	"github.com/consensys/gnark/frontend"
	mimc "github.com/consensys/gnark/std/hash/mimc"
)

// Circuit proves knowledge of the committed attribute tuple and that the
// holder's age meets the threshold, without revealing seed or age.
type Circuit struct {
	// Public inputs (gnark processes public inputs in declared order).
	Commitment frontend.Variable `gnark:",public"`
	Threshold  frontend.Variable `gnark:",public"`
	Liveness   frontend.Variable `gnark:",public"`

	// Private inputs.
	Seed frontend.Variable
	Age  frontend.Variable
}

// Define encodes the constraints: the MiMC hash of (seed, age, liveness)
// must match the public commitment, liveness must be boolean, and
// threshold <= age.
func (c *Circuit) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.Seed, c.Age, c.Liveness)
	api.AssertIsEqual(hasher.Sum(), c.Commitment)

	api.AssertIsBoolean(c.Liveness)
	api.AssertIsLessOrEqual(c.Threshold, c.Age)
	return nil
}
