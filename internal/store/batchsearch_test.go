package store_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/docpipe/docpipe/internal/config"
	"github.com/docpipe/docpipe/internal/store"
	"github.com/docpipe/docpipe/internal/store/model"
)

const (
	insertBatchSearchStm = "INSERT INTO batch_search (uuid, name, description, user_id, prj_id, batch_date, state, published) VALUES ('%s', '%s', '', '%s', '%s', '%s', 'QUEUED', %t);"
	insertQueryStm       = "INSERT INTO batch_search_query (search_uuid, query_number, query) VALUES ('%s', %d, '%s');"
	insertResultStm      = "INSERT INTO batch_search_result (search_uuid, query, doc_nb, doc_id, root_id, doc_name) VALUES ('%s', '%s', %d, '%s', '%s', '%s');"
)

func mustQueries(queries ...string) *model.QueryMap {
	m, err := model.QueryMapOf(queries...)
	Expect(err).To(BeNil())
	return m
}

var _ = Describe("batch search store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db

		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM batch_search_result;")
		gormdb.Exec("DELETE FROM batch_search_query;")
		gormdb.Exec("DELETE FROM batch_search;")
	})

	Context("save", func() {
		It("successfully saves a batch search and reads it back", func() {
			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Name:    "my search",
				Queries: mustQueries("foo", "bar"),
			})
			Expect(err).To(BeNil())
			Expect(saved.ID).ToNot(Equal(uuid.Nil))
			Expect(saved.State).To(Equal(model.StateQueued))
			Expect(saved.Owner).To(Equal("user1"))

			got, err := s.BatchSearch().GetByID(context.TODO(), "user1", saved.ID)
			Expect(err).To(BeNil())
			Expect(got.Name).To(Equal("my search"))
			Expect(got.Project).To(Equal("prj-1"))
			Expect(got.Queries.Keys()).To(Equal([]string{"foo", "bar"}))
			Expect(got.TotalResults).To(Equal(0))
		})

		It("preserves insertion order of many queries", func() {
			queries := make([]string, 0, 20)
			for i := 0; i < 20; i++ {
				queries = append(queries, fmt.Sprintf("query-%02d", 19-i))
			}
			m, err := model.QueryMapOf(queries...)
			Expect(err).To(BeNil())

			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: m,
			})
			Expect(err).To(BeNil())

			got, err := s.BatchSearch().GetByID(context.TODO(), "user1", saved.ID)
			Expect(err).To(BeNil())
			Expect(got.Queries.Keys()).To(Equal(queries))
		})

		It("rejects a batch search without queries", func() {
			_, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: model.NewQueryMap(),
			})
			Expect(err).To(MatchError(store.ErrNoQueries))
		})

		It("rejects duplicate queries up front", func() {
			_, err := model.QueryMapOf("foo", "foo")
			Expect(err).ToNot(BeNil())
		})
	})

	Context("get", func() {
		It("lists own and published searches, newest first", func() {
			mine, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project:   "prj-1",
				Name:      "mine",
				CreatedAt: time.Now().Add(-time.Hour),
				Queries:   mustQueries("foo"),
			})
			Expect(err).To(BeNil())

			published, err := s.BatchSearch().Save(context.TODO(), "user2", model.BatchSearch{
				Project:   "prj-1",
				Name:      "published",
				CreatedAt: time.Now(),
				Published: true,
				Queries:   mustQueries("bar"),
			})
			Expect(err).To(BeNil())

			_, err = s.BatchSearch().Save(context.TODO(), "user2", model.BatchSearch{
				Project: "prj-1",
				Name:    "private",
				Queries: mustQueries("baz"),
			})
			Expect(err).To(BeNil())

			searches, err := s.BatchSearch().Get(context.TODO(), "user1")
			Expect(err).To(BeNil())
			Expect(searches).To(HaveLen(2))
			Expect(searches[0].ID).To(Equal(published.ID))
			Expect(searches[1].ID).To(Equal(mine.ID))
		})

		It("returns not found for an unknown id", func() {
			_, err := s.BatchSearch().GetByID(context.TODO(), "user1", uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("fails loudly on duplicate query keys in storage", func() {
			searchID := uuid.New()
			batchDate := time.Now().Format("2006-01-02 15:04:05")
			tx := gormdb.Exec(fmt.Sprintf(insertBatchSearchStm, searchID, "corrupted", "user1", "prj-1", batchDate, false))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertQueryStm, searchID, 0, "foo"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertQueryStm, searchID, 1, "foo"))
			Expect(tx.Error).To(BeNil())

			_, err := s.BatchSearch().GetByID(context.TODO(), "user1", searchID)
			dupErr := &store.DuplicateQueryError{}
			Expect(err).To(BeAssignableToTypeOf(dupErr))
			Expect(err.(*store.DuplicateQueryError).Query).To(Equal("foo"))
		})
	})

	Context("queued", func() {
		It("lists queued searches and drops them once running", func() {
			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo"),
			})
			Expect(err).To(BeNil())

			queued, err := s.BatchSearch().GetQueued(context.TODO())
			Expect(err).To(BeNil())
			Expect(queued).To(HaveLen(1))
			Expect(queued[0].ID).To(Equal(saved.ID))

			Expect(s.BatchSearch().SetState(context.TODO(), saved.ID, model.StateRunning)).To(BeNil())

			queued, err = s.BatchSearch().GetQueued(context.TODO())
			Expect(err).To(BeNil())
			Expect(queued).To(HaveLen(0))
		})

		It("set state on an unknown search returns not found", func() {
			err := s.BatchSearch().SetState(context.TODO(), uuid.New(), model.StateRunning)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("re-setting the current state is a no-op success", func() {
			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo"),
			})
			Expect(err).To(BeNil())

			Expect(s.BatchSearch().SetState(context.TODO(), saved.ID, model.StateRunning)).To(BeNil())
			Expect(s.BatchSearch().SetState(context.TODO(), saved.ID, model.StateRunning)).To(BeNil())

			got, err := s.BatchSearch().GetByID(context.TODO(), "user1", saved.ID)
			Expect(err).To(BeNil())
			Expect(got.State).To(Equal(model.StateRunning))
		})
	})

	Context("transaction", func() {
		It("commits a saved batch search", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			saved, err := s.BatchSearch().Save(ctx, "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo"),
			})
			Expect(err).To(BeNil())

			_, err = store.Commit(ctx)
			Expect(err).To(BeNil())

			got, err := s.BatchSearch().GetByID(context.TODO(), "user1", saved.ID)
			Expect(err).To(BeNil())
			Expect(got.Queries.Keys()).To(Equal([]string{"foo"}))
		})

		It("rolls back a saved batch search", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			saved, err := s.BatchSearch().Save(ctx, "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo"),
			})
			Expect(err).To(BeNil())

			_, err = store.Rollback(ctx)
			Expect(err).To(BeNil())

			_, err = s.BatchSearch().GetByID(context.TODO(), "user1", saved.ID)
			Expect(err).To(MatchError(store.ErrRecordNotFound))

			count := 0
			Expect(gormdb.Raw("SELECT COUNT(*) FROM batch_search;").Scan(&count).Error).To(BeNil())
			Expect(count).To(Equal(0))
		})
	})

	Context("results", func() {
		It("saves results and exposes per query counts", func() {
			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo", "bar"),
			})
			Expect(err).To(BeNil())

			docs := []model.Document{
				{ID: "doc-1", RootID: "root-1", Name: "a.txt"},
				{ID: "doc-2", RootID: "root-2", Name: "b.txt"},
			}
			Expect(s.BatchSearch().SaveResults(context.TODO(), saved.ID, "foo", docs)).To(BeNil())

			got, err := s.BatchSearch().GetByID(context.TODO(), "user1", saved.ID)
			Expect(err).To(BeNil())
			Expect(got.TotalResults).To(Equal(2))

			count, found := got.Queries.Count("foo")
			Expect(found).To(BeTrue())
			Expect(count).ToNot(BeNil())
			Expect(*count).To(Equal(2))

			count, found = got.Queries.Count("bar")
			Expect(found).To(BeTrue())
			Expect(count).To(BeNil())
		})

		It("re-saving the same positions does not duplicate rows", func() {
			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo"),
			})
			Expect(err).To(BeNil())

			docs := []model.Document{{ID: "doc-1", Name: "a.txt"}}
			Expect(s.BatchSearch().SaveResults(context.TODO(), saved.ID, "foo", docs)).To(BeNil())
			Expect(s.BatchSearch().SaveResults(context.TODO(), saved.ID, "foo", docs)).To(BeNil())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM batch_search_result;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("refuses results of a private search to another user", func() {
			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo"),
			})
			Expect(err).To(BeNil())

			_, err = s.BatchSearch().GetResults(context.TODO(), "user2", saved.ID, nil)
			unauthorized := &store.UnauthorizedError{}
			Expect(err).To(BeAssignableToTypeOf(unauthorized))
			Expect(err.(*store.UnauthorizedError).Owner).To(Equal("user1"))
			Expect(err.(*store.UnauthorizedError).Requester).To(Equal("user2"))
		})

		It("serves results of a published search to any user", func() {
			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project:   "prj-1",
				Published: true,
				Queries:   mustQueries("foo"),
			})
			Expect(err).To(BeNil())
			Expect(s.BatchSearch().SaveResults(context.TODO(), saved.ID, "foo",
				[]model.Document{{ID: "doc-1", Name: "a.txt"}})).To(BeNil())

			results, err := s.BatchSearch().GetResults(context.TODO(), "user2", saved.ID, nil)
			Expect(err).To(BeNil())
			Expect(results).To(HaveLen(1))
			Expect(results[0].DocID).To(Equal("doc-1"))
		})

		It("filters, sorts and pages results", func() {
			searchID := uuid.New()
			batchDate := time.Now().Format("2006-01-02 15:04:05")
			tx := gormdb.Exec(fmt.Sprintf(insertBatchSearchStm, searchID, "paged", "user1", "prj-1", batchDate, false))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertQueryStm, searchID, 0, "foo"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertQueryStm, searchID, 1, "bar"))
			Expect(tx.Error).To(BeNil())
			for i := 0; i < 3; i++ {
				tx = gormdb.Exec(fmt.Sprintf(insertResultStm, searchID, "foo", i, fmt.Sprintf("doc-foo-%d", i), "root", "n"))
				Expect(tx.Error).To(BeNil())
				tx = gormdb.Exec(fmt.Sprintf(insertResultStm, searchID, "bar", i, fmt.Sprintf("doc-bar-%d", i), "root", "n"))
				Expect(tx.Error).To(BeNil())
			}

			results, err := s.BatchSearch().GetResults(context.TODO(), "user1", searchID,
				store.NewResultQuery().WithQueries("foo").WithPage(1, 2))
			Expect(err).To(BeNil())
			Expect(results).To(HaveLen(2))
			Expect(results[0].DocID).To(Equal("doc-foo-1"))
			Expect(results[1].DocID).To(Equal("doc-foo-2"))

			results, err = s.BatchSearch().GetResults(context.TODO(), "user1", searchID,
				store.NewResultQuery().WithSort("doc_id", true).WithPage(0, 1))
			Expect(err).To(BeNil())
			Expect(results).To(HaveLen(1))
			Expect(results[0].DocID).To(Equal("doc-foo-2"))
		})

		It("results of an unknown search return not found", func() {
			_, err := s.BatchSearch().GetResults(context.TODO(), "user1", uuid.New(), nil)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("delete", func() {
		It("deletes a search with its queries and results", func() {
			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo"),
			})
			Expect(err).To(BeNil())
			Expect(s.BatchSearch().SaveResults(context.TODO(), saved.ID, "foo",
				[]model.Document{{ID: "doc-1"}})).To(BeNil())

			Expect(s.BatchSearch().Delete(context.TODO(), "user1", saved.ID)).To(BeNil())

			count := 0
			Expect(gormdb.Raw("SELECT COUNT(*) FROM batch_search_query;").Scan(&count).Error).To(BeNil())
			Expect(count).To(Equal(0))
			Expect(gormdb.Raw("SELECT COUNT(*) FROM batch_search_result;").Scan(&count).Error).To(BeNil())
			Expect(count).To(Equal(0))

			_, err = s.BatchSearch().GetByID(context.TODO(), "user1", saved.ID)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("refuses to delete a search owned by someone else", func() {
			saved, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo"),
			})
			Expect(err).To(BeNil())

			err = s.BatchSearch().Delete(context.TODO(), "user2", saved.ID)
			Expect(err).To(MatchError(store.ErrRecordNotFound))

			_, err = s.BatchSearch().GetByID(context.TODO(), "user1", saved.ID)
			Expect(err).To(BeNil())
		})

		It("deletes every search of one user, leaving others in place", func() {
			_, err := s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("foo"),
			})
			Expect(err).To(BeNil())
			_, err = s.BatchSearch().Save(context.TODO(), "user1", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("bar"),
			})
			Expect(err).To(BeNil())
			other, err := s.BatchSearch().Save(context.TODO(), "user2", model.BatchSearch{
				Project: "prj-1",
				Queries: mustQueries("baz"),
			})
			Expect(err).To(BeNil())

			Expect(s.BatchSearch().DeleteAll(context.TODO(), "user1")).To(BeNil())

			searches, err := s.BatchSearch().Get(context.TODO(), "user1")
			Expect(err).To(BeNil())
			Expect(searches).To(HaveLen(0))

			_, err = s.BatchSearch().GetByID(context.TODO(), "user2", other.ID)
			Expect(err).To(BeNil())
		})
	})
})
