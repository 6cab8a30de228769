package storyboard

import (
	"context"
	"errors"
	"testing"
)

func shot(idx, cam int, variation VariationType) Shot {
	return Shot{Idx: idx, CamIdx: cam, VisualDesc: "scene", VariationType: variation}
}

func TestBuildForestSingleCamera(t *testing.T) {
	shots := []Shot{shot(0, 1, VariationSmall), shot(1, 1, VariationSmall), shot(2, 1, VariationLarge)}
	cams, err := BuildForest(context.Background(), shots, RecencyMatcher{})
	if err != nil {
		t.Fatalf("BuildForest: %v", err)
	}
	if len(cams) != 1 {
		t.Fatalf("cameras = %d", len(cams))
	}
	if !cams[0].IsRoot() || cams[0].AnchorShotIdx() != 0 {
		t.Errorf("camera = %+v", cams[0])
	}
	if got := cams[0].ActiveShotIdxs; len(got) != 3 || got[2] != 2 {
		t.Errorf("active shots = %v", got)
	}
}

func TestBuildForestLinksNewCameraToMostRecent(t *testing.T) {
	// Camera 1 films shots 0 and 2, camera 2 cuts in at 1, camera 3 at 3.
	shots := []Shot{
		shot(0, 1, VariationSmall),
		shot(1, 2, VariationSmall),
		shot(2, 1, VariationSmall),
		shot(3, 3, VariationSmall),
	}
	cams, err := BuildForest(context.Background(), shots, RecencyMatcher{})
	if err != nil {
		t.Fatalf("BuildForest: %v", err)
	}
	if len(cams) != 3 {
		t.Fatalf("cameras = %d", len(cams))
	}

	cam2 := cams[1]
	if cam2.Idx != 2 || cam2.ParentCamIdx == nil || *cam2.ParentCamIdx != 1 || *cam2.ParentShotIdx != 0 {
		t.Errorf("camera 2 = %+v", cam2)
	}
	// When camera 3 appears, camera 1 was last active (shot 2).
	cam3 := cams[2]
	if cam3.Idx != 3 || cam3.ParentCamIdx == nil || *cam3.ParentCamIdx != 1 || *cam3.ParentShotIdx != 2 {
		t.Errorf("camera 3 = %+v", cam3)
	}
	if cam3.ParentFullyCoversChild {
		t.Error("recency matcher must not claim coverage")
	}
	if cam3.MissingInfo == "" {
		t.Error("missing info not recorded")
	}
}

type fixedMatcher struct {
	match ParentMatch
	ok    bool
	err   error
}

func (f fixedMatcher) MatchParent(context.Context, Shot, []Camera) (ParentMatch, bool, error) {
	return f.match, f.ok, f.err
}

func TestBuildForestMatcherErrorPropagates(t *testing.T) {
	shots := []Shot{shot(0, 1, VariationSmall), shot(1, 2, VariationSmall)}
	wantErr := errors.New("vision model unavailable")
	_, err := BuildForest(context.Background(), shots, fixedMatcher{err: wantErr})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildForestNoMatchMakesRoot(t *testing.T) {
	shots := []Shot{shot(0, 1, VariationSmall), shot(1, 2, VariationSmall)}
	cams, err := BuildForest(context.Background(), shots, fixedMatcher{ok: false})
	if err != nil {
		t.Fatalf("BuildForest: %v", err)
	}
	if !cams[1].IsRoot() {
		t.Errorf("unmatched camera should be a root: %+v", cams[1])
	}
}

func TestBuildForestRejectsUnknownParent(t *testing.T) {
	shots := []Shot{shot(0, 1, VariationSmall), shot(1, 2, VariationSmall)}
	_, err := BuildForest(context.Background(), shots, fixedMatcher{
		match: ParentMatch{ParentCamIdx: 99, ParentShotIdx: 0},
		ok:    true,
	})
	if err == nil {
		t.Fatal("want error for unknown parent camera")
	}
}

func TestValidateForestCatchesCorruption(t *testing.T) {
	shots := []Shot{shot(0, 1, VariationSmall), shot(1, 2, VariationSmall)}
	one := 1
	two := 2

	cases := []struct {
		name    string
		cameras []Camera
	}{
		{"empty camera", []Camera{{Idx: 1, ActiveShotIdxs: []int{0}}, {Idx: 2}}},
		{"duplicate shot claim", []Camera{
			{Idx: 1, ActiveShotIdxs: []int{0, 1}},
			{Idx: 2, ActiveShotIdxs: []int{1}},
		}},
		{"unassigned shot", []Camera{{Idx: 1, ActiveShotIdxs: []int{0}}}},
		{"shots out of order", []Camera{
			{Idx: 1, ActiveShotIdxs: []int{0}},
			{Idx: 2, ActiveShotIdxs: []int{1, 1}},
		}},
		{"parent shot on wrong camera", []Camera{
			{Idx: 1, ActiveShotIdxs: []int{0}},
			{Idx: 2, ActiveShotIdxs: []int{1}, ParentCamIdx: &one, ParentShotIdx: &one},
		}},
		{"parent shot after anchor", []Camera{
			{Idx: 2, ActiveShotIdxs: []int{1}},
			{Idx: 1, ActiveShotIdxs: []int{0}, ParentCamIdx: &two, ParentShotIdx: &one},
		}},
		{"parent without shot", []Camera{
			{Idx: 1, ActiveShotIdxs: []int{0}},
			{Idx: 2, ActiveShotIdxs: []int{1}, ParentCamIdx: &one},
		}},
	}
	for _, tc := range cases {
		if err := ValidateForest(shots, tc.cameras); err == nil {
			t.Errorf("%s: validation passed", tc.name)
		}
	}
}

func TestShotValidate(t *testing.T) {
	good := shot(0, 1, VariationMedium)
	if err := good.Validate(); err != nil {
		t.Errorf("valid shot rejected: %v", err)
	}
	bad := shot(0, 1, "colossal")
	if err := bad.Validate(); err == nil {
		t.Error("unknown variation accepted")
	}
	if VariationSmall.RequiresLastFrame() {
		t.Error("small variation should not need a last frame")
	}
	if !VariationMedium.RequiresLastFrame() || !VariationLarge.RequiresLastFrame() {
		t.Error("medium and large variations need a last frame")
	}
}
