package usecase

import (
	"sort"

	"repomesh/internal/domain"
)

// DetectChanges classifies repositories by comparing the current snapshot with
// the previous index. With no previous index every repository is new.
func DetectChanges(current map[string]domain.Repository, prev *domain.Index) domain.ChangeDetectionResult {
	res := domain.ChangeDetectionResult{
		ChangedRepos:  []string{},
		NewRepos:      []string{},
		DeletedRepos:  []string{},
		ChangeDetails: []domain.RepoChangeDetail{},
	}

	var old map[string]domain.Repository
	if prev != nil {
		old = prev.Repos
	}

	for id, repo := range current {
		before, existed := old[id]
		switch {
		case !existed:
			res.NewRepos = append(res.NewRepos, id)
			res.ChangeDetails = append(res.ChangeDetails, domain.RepoChangeDetail{
				RepoID:     id,
				ChangeType: domain.ChangeNew,
				NewCommit:  repo.HeadCommit,
			})
		case before.HeadCommit != repo.HeadCommit || before.Path != repo.Path:
			res.ChangedRepos = append(res.ChangedRepos, id)
			res.ChangeDetails = append(res.ChangeDetails, domain.RepoChangeDetail{
				RepoID:     id,
				ChangeType: domain.ChangeModified,
				OldCommit:  before.HeadCommit,
				NewCommit:  repo.HeadCommit,
			})
		}
	}
	for id, before := range old {
		if _, ok := current[id]; !ok {
			res.DeletedRepos = append(res.DeletedRepos, id)
			res.ChangeDetails = append(res.ChangeDetails, domain.RepoChangeDetail{
				RepoID:     id,
				ChangeType: domain.ChangeDeleted,
				OldCommit:  before.HeadCommit,
			})
		}
	}

	sort.Strings(res.ChangedRepos)
	sort.Strings(res.NewRepos)
	sort.Strings(res.DeletedRepos)
	sort.Slice(res.ChangeDetails, func(i, j int) bool {
		return res.ChangeDetails[i].RepoID < res.ChangeDetails[j].RepoID
	})
	res.HasChanges = len(res.ChangeDetails) > 0
	return res
}

// NeedsRescan reports whether an incremental scan must re-walk repoID.
func NeedsRescan(res domain.ChangeDetectionResult, repoID string) bool {
	for _, d := range res.ChangeDetails {
		if d.RepoID == repoID {
			return d.ChangeType == domain.ChangeNew || d.ChangeType == domain.ChangeModified
		}
	}
	return false
}
