package service

import "scribe/internal/models"

// PlanSubPosts diffs incoming sub-post drafts against a post's existing children.
//
// Drafts with an ID that matches a child update it in place, drafts with ID 0
// become new children, drafts whose ID matches no child are ignored, and every
// child not referenced by a draft is deleted. An empty incoming slice deletes
// all children. Output order follows input order.
func PlanSubPosts(existing []models.SubPost, incoming []models.SubPostDraft) models.SubPostPlan {
	owned := make(map[uint]struct{}, len(existing))
	for _, s := range existing {
		owned[s.ID] = struct{}{}
	}

	var plan models.SubPostPlan
	kept := make(map[uint]struct{}, len(incoming))
	for _, d := range incoming {
		if d.ID == 0 {
			plan.Creates = append(plan.Creates, d)
			continue
		}
		if _, ok := owned[d.ID]; !ok {
			plan.Ignored = append(plan.Ignored, d.ID)
			continue
		}
		// A repeated id updates the same child twice; the last draft wins.
		kept[d.ID] = struct{}{}
		plan.Updates = append(plan.Updates, d)
	}

	for _, s := range existing {
		if _, ok := kept[s.ID]; !ok {
			plan.Deletes = append(plan.Deletes, s.ID)
		}
	}
	return plan
}
