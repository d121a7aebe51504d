/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package server

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/BSAI-24005/file-verse/pkg/omni"
	"github.com/BSAI-24005/file-verse/pkg/store"
)

// Inspect prints the header, space accounting and active user slots of the
// image at path.
func Inspect(ctx context.Context, path string, w io.Writer) error {
	img, h, err := omni.OpenAndValidate(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open image %s", path)
	}
	st, err := img.Stats()
	if err != nil {
		return err
	}
	fm, err := img.ReadFreeMap()
	if err != nil {
		return err
	}
	users, err := img.ReadUsers()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "image\t%s\n", path)
	fmt.Fprintf(tw, "format_version\t0x%08x\n", h.FormatVersion)
	fmt.Fprintf(tw, "submission_id\t%s\n", h.SubmissionID)
	fmt.Fprintf(tw, "submission_date\t%s\n", h.SubmissionDate)
	fmt.Fprintf(tw, "config_hash\t%s\n", h.ConfigHash)
	fmt.Fprintf(tw, "block_size\t%d\n", h.BlockSize)
	fmt.Fprintf(tw, "total_size\t%d\n", st.TotalSize)
	fmt.Fprintf(tw, "used_space\t%d\n", st.UsedSpace)
	fmt.Fprintf(tw, "free_space\t%d\n", st.FreeSpace)
	fmt.Fprintf(tw, "free_blocks\t%d/%d\n", fm.FreeCount(), fm.Len())
	fmt.Fprintf(tw, "user_slots\t%d\n", h.MaxUsers)
	for i, u := range users {
		if !u.Active {
			continue
		}
		fmt.Fprintf(tw, "user[%d]\t%s\t%s\t%s\n", i, u.Username, u.Role,
			time.Unix(int64(u.CreatedTime), 0).UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

// ListLogins prints every recorded login attempt, oldest first.
func ListLogins(ctx context.Context, dbPath string, w io.Writer) error {
	db, err := store.NewDatabase(dbPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open audit database %s", dbPath)
	}
	defer db.Close()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSER\tRESULT\tREQUEST\tREMOTE")
	err = db.WalkLogins(ctx, func(ev *store.LoginEvent) error {
		result := "rejected"
		if ev.Success {
			result = "ok"
		}
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.Time.UTC().Format(time.RFC3339), ev.Username, result, ev.RequestID, ev.Remote)
		return err
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}
