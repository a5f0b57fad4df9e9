package experiment

import (
	env "github.com/kiwi-sherbet/loco-mujoco/environment"
	"github.com/kiwi-sherbet/loco-mujoco/experiment/tracker"
	ts "github.com/kiwi-sherbet/loco-mujoco/timestep"
)

// Online is an Experiment that runs a policy online only. No offline
// evaluation is performed.
type Online struct {
	env.Environment
	Policy
	maxSteps     uint
	currentSteps uint
	trackers     []tracker.Tracker
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given policy. The steps parameter determines how
// many timesteps the experiment is run for, and the t parameter is a
// slice of tracker.Tracker which determine what data is saved.
func NewOnline(e env.Environment, p Policy, steps uint,
	t ...tracker.Tracker) *Online {
	return &Online{e, p, steps, 0, t}
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment
func (o *Online) RunEpisode() bool {
	step := o.Environment.Reset()
	o.track(step)

	// Run the next timestep
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		// Select action, step in environment
		action := o.Policy.SelectAction(step)
		step, _ = o.Environment.Step(action)

		// Cache the environment step in each Tracker
		o.track(step)
	}

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() {
	ended := false

	for !ended {
		ended = o.RunEpisode()
	}
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() {
	for _, t := range o.trackers {
		t.Save()
	}
}

// track tracks the current timestep by caching its data in each tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}
