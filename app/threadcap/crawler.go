package threadcap

import (
	"context"
	"fmt"
)

// UpdateThreadcap performs a level-bounded, node-count-bounded,
// cancellable breadth-first expansion of the thread. Calling it again
// with a later UpdateTime refreshes incrementally: entries whose asof
// is already at or past the new bound are skipped.
//
// All of level N completes before level N+1 begins. Within a level,
// nodes are processed sequentially in list order, so the shared maps
// are only ever mutated between fetches, never concurrently.
func UpdateThreadcap(ctx context.Context, tc *Threadcap, opts Options) error {
	impl := opts.Implementation
	if impl == nil {
		var err error
		impl, err = implementationFor(tc.Protocol)
		if err != nil {
			return err
		}
	}
	sess := opts.session()
	defer sess.Close()

	maxLevel := opts.MaxLevels
	if maxLevel <= 0 || maxLevel > 1000 {
		maxLevel = 1000
	}
	maxNodes := opts.MaxNodes

	ids := tc.Roots
	if opts.StartNode != "" {
		ids = []string{opts.StartNode}
	}

	processed := 0
	for level := 0; level < maxLevel && len(ids) > 0; level++ {
		sess.event(Event{Kind: EventProcessLevel, Level: level, Phase: "before"})
		var nextIds []string
		for _, id := range ids {
			if maxNodes > 0 && processed >= maxNodes {
				sess.event(Event{Kind: EventProcessLevel, Level: level, Phase: "after"})
				return nil
			}
			if opts.KeepGoing != nil && !opts.KeepGoing() {
				sess.event(Event{Kind: EventProcessLevel, Level: level, Phase: "after"})
				return nil
			}
			node := processNode(ctx, tc, impl, sess, id)
			processed++
			if level+1 < maxLevel {
				nextIds = append(nextIds, node.Replies...)
			}
		}
		sess.event(Event{Kind: EventProcessLevel, Level: level, Phase: "after"})
		ids = nextIds
	}
	return nil
}

// processNode refreshes one node's comment, commenter and reply list,
// each only when stale against the session's UpdateTime. The comment
// and its commenter are refreshed atomically as a pair: a commenter
// failure discards the fetched comment and records the error.
// Failures never escape this function; they are stored on the node.
func processNode(ctx context.Context, tc *Threadcap, impl Implementation, sess *Session, id string) *Node {
	node := tc.Nodes[id]
	if node == nil {
		node = &Node{}
		tc.Nodes[id] = node
	}

	updateComment := node.CommentAsof == nil || node.CommentAsof.Before(sess.UpdateTime)
	if updateComment {
		comment, err := impl.FetchComment(ctx, id, sess)
		if err == nil && comment != nil && comment.AttributedTo != "" {
			existing := tc.Commenters[comment.AttributedTo]
			if existing == nil || existing.Asof.Before(sess.UpdateTime) {
				var commenter *Commenter
				commenter, err = impl.FetchCommenter(ctx, comment.AttributedTo, sess)
				if err == nil {
					tc.Commenters[comment.AttributedTo] = commenter
				}
			}
		}
		if err != nil {
			node.Comment = nil
			node.CommentError = fmt.Sprintf("%v", err)
		} else {
			node.Comment = comment
			node.CommentError = ""
		}
		asof := sess.UpdateTime
		node.CommentAsof = &asof
	}
	sess.event(Event{Kind: EventNodeProcessed, NodeID: id, Part: "comment", Updated: updateComment})

	updateReplies := node.RepliesAsof == nil || node.RepliesAsof.Before(sess.UpdateTime)
	if updateReplies {
		replies, err := impl.FetchReplies(ctx, id, sess)
		if err != nil {
			node.Replies = nil
			node.RepliesError = fmt.Sprintf("%v", err)
		} else {
			node.Replies = replies
			node.RepliesError = ""
		}
		asof := sess.UpdateTime
		node.RepliesAsof = &asof
	}
	sess.event(Event{Kind: EventNodeProcessed, NodeID: id, Part: "replies", Updated: updateReplies})

	return node
}
