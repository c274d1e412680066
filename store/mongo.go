package store

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"udaay-be/models"
)

// MongoStore implements IssueStore and NotificationStore on MongoDB.
type MongoStore struct {
	issues        *mongo.Collection
	notifications *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		issues:        db.Collection("issues"),
		notifications: db.Collection("notifications"),
	}
}

// EnsureIndexes creates the geospatial and lookup indexes the queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.issues.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location.point", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "reporterId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create issue indexes")
	}

	_, err = s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create notification index")
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, err := s.issues.InsertOne(ctx, issue); err != nil {
		return goerr.Wrap(err, "failed to insert issue")
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, goerr.Wrap(models.ErrNotFound, "issue not found", goerr.V("id", id.Hex()))
		}
		return nil, goerr.Wrap(err, "failed to retrieve issue", goerr.V("id", id.Hex()))
	}
	return &issue, nil
}

// liveFilter builds the public feed filter. $near already orders by distance, so
// the caller only sorts by recency when no point is given.
func liveFilter(q LiveQuery) bson.M {
	filter := bson.M{"status": models.StatusLive}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Near != nil {
		filter["location.point"] = bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{q.Near.Lng, q.Near.Lat},
				},
				"$maxDistance": q.radius(),
			},
		}
	}
	return filter
}

func (s *MongoStore) FindLive(ctx context.Context, q LiveQuery) ([]models.Issue, error) {
	findOptions := options.Find().
		SetLimit(MaxLiveResults).
		SetProjection(bson.M{"history": 0})
	if q.Near == nil {
		findOptions.SetSort(bson.D{{Key: "createdAt", Value: -1}})
	}

	cursor, err := s.issues.Find(ctx, liveFilter(q), findOptions)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query live issues")
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, goerr.Wrap(err, "failed to decode live issues")
	}
	return issues, nil
}

func (s *MongoStore) FindByReporter(ctx context.Context, reporterID string, status models.IssueStatus) ([]models.Issue, error) {
	filter := bson.M{"reporterId": reporterID}
	if status != "" {
		filter["status"] = status
	}

	cursor, err := s.issues.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query reporter issues", goerr.V("reporterId", reporterID))
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, goerr.Wrap(err, "failed to decode reporter issues")
	}
	return issues, nil
}

// transitionDocument builds the conditional update for u.
func transitionDocument(u TransitionUpdate) (bson.M, bson.M) {
	filter := bson.M{"_id": u.ID, "status": u.Expected}

	set := bson.M{
		"status":    u.Change.To,
		"updatedAt": u.Change.At,
	}
	if u.Severity != nil {
		set["severity"] = *u.Severity
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.DetectedCategory != nil {
		set["detectedCategory"] = *u.DetectedCategory
	}
	if u.Validation != nil {
		set["validation"] = *u.Validation
	}
	if u.ResolutionRejection != nil {
		set["resolutionRejection"] = *u.ResolutionRejection
	}

	update := bson.M{
		"$set":  set,
		"$push": bson.M{"history": u.Change},
	}
	if u.Reopen {
		update["$inc"] = bson.M{"reopenCount": 1}
	}
	return filter, update
}

func (s *MongoStore) Transition(ctx context.Context, u TransitionUpdate) (*models.Issue, error) {
	filter, update := transitionDocument(u)

	var issue models.Issue
	err := s.issues.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&issue)
	if err == nil {
		return &issue, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, goerr.Wrap(err, "failed to update issue status", goerr.V("id", u.ID.Hex()))
	}
	return nil, s.conditionMissed(ctx, u.ID, u.Change.Event)
}

// conditionMissed explains why a conditional update matched nothing.
func (s *MongoStore) conditionMissed(ctx context.Context, id primitive.ObjectID, event models.IssueEvent) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return &models.TransitionError{Current: current.Status, Event: event}
}

func (s *MongoStore) MarkManualReview(ctx context.Context, id primitive.ObjectID, v models.Validation) (*models.Issue, error) {
	filter := bson.M{"_id": id, "status": models.StatusPending}
	update := bson.M{"$set": bson.M{"validation": v, "updatedAt": v.ValidatedAt}}

	var issue models.Issue
	err := s.issues.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&issue)
	if err == nil {
		return &issue, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, goerr.Wrap(err, "failed to record manual review", goerr.V("id", id.Hex()))
	}
	return nil, s.conditionMissed(ctx, id, models.EventValidationFailed)
}

func (s *MongoStore) UpdateSeverity(ctx context.Context, id primitive.ObjectID, severity models.Severity, at time.Time) (*models.Issue, error) {
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"severity": severity, "updatedAt": at}})
}

func (s *MongoStore) IncrementUpvotes(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return s.findOneAndUpdate(ctx, id, bson.M{"$inc": bson.M{"upvotes": 1}})
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Issue, error) {
	var issue models.Issue
	err := s.issues.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, goerr.Wrap(models.ErrNotFound, "issue not found", goerr.V("id", id.Hex()))
		}
		return nil, goerr.Wrap(err, "failed to update issue", goerr.V("id", id.Hex()))
	}
	return &issue, nil
}

func (s *MongoStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.issues.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return goerr.Wrap(err, "failed to delete issue", goerr.V("id", id.Hex()))
	}
	if res.DeletedCount == 0 {
		return goerr.Wrap(models.ErrNotFound, "issue not found", goerr.V("id", id.Hex()))
	}

	if _, err := s.notifications.DeleteMany(ctx, bson.M{"issueId": id}); err != nil {
		logNotificationCleanup(id, err)
	}
	return nil
}

// logNotificationCleanup reports inbox entries left behind by a deleted issue. The
// delete itself already succeeded.
func logNotificationCleanup(id primitive.ObjectID, err error) {
	log.Warn().
		Err(err).
		Str("issue_id", id.Hex()).
		Msg("Failed to delete notifications of deleted issue")
}

func (s *MongoStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if _, err := s.notifications.InsertOne(ctx, n); err != nil {
		return goerr.Wrap(err, "failed to insert notification")
	}
	return nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(MaxNotifications)

	cursor, err := s.notifications.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query notifications")
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, goerr.Wrap(err, "failed to decode notifications")
	}
	return notifications, nil
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, id primitive.ObjectID, userID string) (*models.Notification, error) {
	var n models.Notification
	err := s.notifications.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": bson.M{"isRead": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, goerr.Wrap(models.ErrNotFound, "notification not found", goerr.V("id", id.Hex()))
		}
		return nil, goerr.Wrap(err, "failed to mark notification read")
	}
	return &n, nil
}

func (s *MongoStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.notifications.UpdateMany(ctx,
		bson.M{"userId": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to mark notifications read")
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	count, err := s.notifications.CountDocuments(ctx, bson.M{"userId": userID, "isRead": false})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count notifications")
	}
	return count, nil
}
