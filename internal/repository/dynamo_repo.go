package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hitoshi/noteman/internal/model"
)

// UserIDIndexName はUsersテーブルのuserIdをキーとするGSI名。
const UserIDIndexName = "userId-index"

// DynamoAPI はリポジトリが使用するDynamoDBクライアントの操作。
// *dynamodb.Client が満たす。テストではフェイクに差し替える。
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoConfig はDynamoDBクライアントの接続設定。
type DynamoConfig struct {
	Region          string
	Endpoint        string // ローカルDynamoDB等。空ならAWSの既定エンドポイント
	AccessKeyID     string // 空なら既定の認証情報チェーンを使用する
	SecretAccessKey string
}

// NewDynamoClient はDynamoDBクライアントを生成する。
func NewDynamoClient(ctx context.Context, cfg DynamoConfig) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// dynamoUserItem はUsersテーブルの項目。パーティションキーはemail。
type dynamoUserItem struct {
	Email        string    `dynamodbav:"email"`
	UserID       string    `dynamodbav:"userId"`
	PasswordHash string    `dynamodbav:"passwordHash"`
	CreatedAt    time.Time `dynamodbav:"createdAt"`
}

func (i dynamoUserItem) toModel() *model.User {
	return &model.User{
		ID:           i.UserID,
		Email:        i.Email,
		PasswordHash: i.PasswordHash,
		CreatedAt:    i.CreatedAt,
	}
}

// dynamoNoteItem はNotesテーブルの項目。
// パーティションキーはuserId、ソートキーはnoteId。
type dynamoNoteItem struct {
	UserID    string    `dynamodbav:"userId"`
	NoteID    string    `dynamodbav:"noteId"`
	Title     string    `dynamodbav:"title"`
	Content   string    `dynamodbav:"content"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt"`
}

func (i dynamoNoteItem) toModel() *model.Note {
	return &model.Note{
		ID:        i.NoteID,
		OwnerID:   i.UserID,
		Title:     i.Title,
		Content:   i.Content,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// DynamoUserRepo はDynamoDBを使用したユーザーリポジトリ。
type DynamoUserRepo struct {
	client DynamoAPI
	table  string
}

// NewDynamoUserRepo はDynamoUserRepoを生成する。
func NewDynamoUserRepo(client DynamoAPI, table string) *DynamoUserRepo {
	return &DynamoUserRepo{client: client, table: table}
}

// Create はattribute_not_exists(email)条件付きでユーザーを書き込む。
func (r *DynamoUserRepo) Create(ctx context.Context, user *model.User) error {
	item, err := attributevalue.MarshalMap(dynamoUserItem{
		Email:        user.Email,
		UserID:       user.ID,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("failed to put user: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *DynamoUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            map[string]types.AttributeValue{"email": &types.AttributeValueMemberS{Value: email}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item dynamoUserItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return item.toModel(), nil
}

// FindByID はuserId-indexを使ってユーザーを取得する。見つからない場合はnilを返す。
func (r *DynamoUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(UserIDIndexName),
		KeyConditionExpression: aws.String("userId = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: id},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user by ID: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	var item dynamoUserItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return item.toModel(), nil
}

// ExistsByEmail はメールアドレスが登録済みかどうかを返す。
func (r *DynamoUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.table),
		Key:                  map[string]types.AttributeValue{"email": &types.AttributeValueMemberS{Value: email}},
		ProjectionExpression: aws.String("email"),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return out.Item != nil, nil
}

// DynamoNoteRepo はDynamoDBを使用したノートリポジトリ。
type DynamoNoteRepo struct {
	client DynamoAPI
	table  string
}

// NewDynamoNoteRepo はDynamoNoteRepoを生成する。
func NewDynamoNoteRepo(client DynamoAPI, table string) *DynamoNoteRepo {
	return &DynamoNoteRepo{client: client, table: table}
}

func noteKey(ownerID, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: ownerID},
		"noteId": &types.AttributeValueMemberS{Value: id},
	}
}

// Create はノートを書き込む。同じキーの既存項目は上書きしない。
func (r *DynamoNoteRepo) Create(ctx context.Context, note *model.Note) error {
	item, err := attributevalue.MarshalMap(dynamoNoteItem{
		UserID:    note.OwnerID,
		NoteID:    note.ID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(noteId)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put note: %w", err)
	}
	return nil
}

// FindByOwnerAndID は所有者とIDでノートを取得する。見つからない場合はnilを返す。
func (r *DynamoNoteRepo) FindByOwnerAndID(ctx context.Context, ownerID, id string) (*model.Note, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            noteKey(ownerID, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item dynamoNoteItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal note: %w", err)
	}
	return item.toModel(), nil
}

// ListByOwner はパーティションキーuserIdでQueryし、全ページを取得する。
func (r *DynamoNoteRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Note, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("userId = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: ownerID},
		},
	})

	var notes []*model.Note
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query notes: %w", err)
		}

		var items []dynamoNoteItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
		}
		for _, item := range items {
			notes = append(notes, item.toModel())
		}
	}
	return notes, nil
}

// Update はattribute_exists(noteId)条件付きでtitle、content、updatedAtを更新する。
func (r *DynamoNoteRepo) Update(ctx context.Context, note *model.Note) (bool, error) {
	updatedAt, err := attributevalue.Marshal(note.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to marshal updatedAt: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 noteKey(note.OwnerID, note.ID),
		UpdateExpression:    aws.String("SET #t = :t, #c = :c, #u = :u"),
		ConditionExpression: aws.String("attribute_exists(noteId)"),
		ExpressionAttributeNames: map[string]string{
			"#t": "title",
			"#c": "content",
			"#u": "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberS{Value: note.Title},
			":c": &types.AttributeValueMemberS{Value: note.Content},
			":u": updatedAt,
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to update note: %w", err)
	}
	return true, nil
}

// Delete はattribute_exists(noteId)条件付きでノートを削除する。
func (r *DynamoNoteRepo) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 noteKey(ownerID, id),
		ConditionExpression: aws.String("attribute_exists(noteId)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	return true, nil
}

// DynamoPinger はテーブルのDescribeTableで疎通を確認する。
type DynamoPinger struct {
	client DynamoAPI
	table  string
}

// NewDynamoPinger はDynamoPingerを生成する。
func NewDynamoPinger(client DynamoAPI, table string) *DynamoPinger {
	return &DynamoPinger{client: client, table: table}
}

// PingContext はテーブルが参照可能であることを確認する。
func (p *DynamoPinger) PingContext(ctx context.Context) error {
	_, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(p.table),
	})
	if err != nil {
		return fmt.Errorf("failed to describe table %s: %w", p.table, err)
	}
	return nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// compile-time interface checks
var (
	_ UserRepository = (*DynamoUserRepo)(nil)
	_ NoteRepository = (*DynamoNoteRepo)(nil)
	_ Pinger         = (*DynamoPinger)(nil)
	_ DynamoAPI      = (*dynamodb.Client)(nil)
)
