package index

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/HandsomeSB/Askit/internal/model"
)

const batchWriteMax = 25

// folderMetaItem is the meta-table row. current_gen names the committed
// chunk generation; rows under any other generation are invisible to reads.
type folderMetaItem struct {
	model.FolderIndexMeta
	CurrentGen string `dynamodbav:"current_gen"`
}

type chunkItem struct {
	FolderGen string `dynamodbav:"folder_gen"`
	model.Chunk
}

// DynamoStore persists the index in two DynamoDB tables: a meta table
// keyed by folder_id and a chunk table keyed by folder_gen + chunk_id,
// where folder_gen is "folderID#generationID". A pass writes all chunks
// under a fresh generation first and commits it with a single meta write,
// so readers never observe a half-written folder.
type DynamoStore struct {
	client     *dynamodb.Client
	metaTable  string
	chunkTable string
}

// NewDynamoStore creates a DynamoStore.
func NewDynamoStore(client *dynamodb.Client, metaTable, chunkTable string) *DynamoStore {
	return &DynamoStore{client: client, metaTable: metaTable, chunkTable: chunkTable}
}

func folderGenKey(folderID, genID string) string {
	return folderID + "#" + genID
}

// UpsertFolder writes the chunks as a new generation, then flips the meta
// row to it. The previous generation is deleted best-effort afterwards;
// a failed cleanup leaves orphan rows but never a broken index.
func (s *DynamoStore) UpsertFolder(ctx context.Context, meta model.FolderIndexMeta, chunks []model.Chunk) error {
	if err := ValidateGeneration(meta.FolderID, chunks); err != nil {
		return err
	}
	genID := uuid.New().String()

	// 1. Stage every chunk under the new generation.
	if err := s.writeGeneration(ctx, meta.FolderID, genID, chunks); err != nil {
		return &model.IndexWriteError{FolderID: meta.FolderID, Err: err}
	}

	// 2. Read the old generation so it can be cleaned up after the swap.
	oldGen, _ := s.currentGen(ctx, meta.FolderID)

	// 3. Commit: a single meta write flips readers to the new generation.
	item, err := attributevalue.MarshalMap(folderMetaItem{FolderIndexMeta: meta, CurrentGen: genID})
	if err != nil {
		return &model.IndexWriteError{FolderID: meta.FolderID, Err: fmt.Errorf("failed to marshal folder meta: %w", err)}
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.metaTable),
		Item:      item,
	})
	if err != nil {
		return &model.IndexWriteError{FolderID: meta.FolderID, Err: fmt.Errorf("failed to commit folder meta: %w", err)}
	}

	// 4. Best-effort cleanup of the superseded generation.
	if oldGen != "" && oldGen != genID {
		if err := s.deleteGeneration(ctx, meta.FolderID, oldGen); err != nil {
			fmt.Printf("index: failed to clean up old generation %s for folder %s: %v\n", oldGen, meta.FolderID, err)
		}
	}
	return nil
}

func (s *DynamoStore) writeGeneration(ctx context.Context, folderID, genID string, chunks []model.Chunk) error {
	key := folderGenKey(folderID, genID)
	for start := 0; start < len(chunks); start += batchWriteMax {
		end := start + batchWriteMax
		if end > len(chunks) {
			end = len(chunks)
		}
		requests := make([]types.WriteRequest, 0, end-start)
		for _, c := range chunks[start:end] {
			item, err := attributevalue.MarshalMap(chunkItem{FolderGen: key, Chunk: c})
			if err != nil {
				return fmt.Errorf("failed to marshal chunk %s: %w", c.ID, err)
			}
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.chunkTable: requests},
		})
		if err != nil {
			return fmt.Errorf("failed to write chunk batch: %w", err)
		}
		// Retry unprocessed items once before giving up on the pass.
		if pending := out.UnprocessedItems[s.chunkTable]; len(pending) > 0 {
			retry, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.chunkTable: pending},
			})
			if err != nil {
				return fmt.Errorf("failed to retry chunk batch: %w", err)
			}
			if len(retry.UnprocessedItems[s.chunkTable]) > 0 {
				return fmt.Errorf("chunk batch left %d unprocessed items", len(retry.UnprocessedItems[s.chunkTable]))
			}
		}
	}
	return nil
}

func (s *DynamoStore) currentGen(ctx context.Context, folderID string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.metaTable),
		Key: map[string]types.AttributeValue{
			"folder_id": &types.AttributeValueMemberS{Value: folderID},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get folder meta: %w", err)
	}
	if out.Item == nil {
		return "", nil
	}
	var item folderMetaItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", fmt.Errorf("failed to unmarshal folder meta: %w", err)
	}
	return item.CurrentGen, nil
}

func (s *DynamoStore) loadGeneration(ctx context.Context, folderID, genID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.chunkTable),
			KeyConditionExpression: aws.String("folder_gen = :fg"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":fg": &types.AttributeValueMemberS{Value: folderGenKey(folderID, genID)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query chunks: %w", err)
		}
		var page []chunkItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunks: %w", err)
		}
		for _, item := range page {
			chunks = append(chunks, item.Chunk)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return chunks, nil
}

func (s *DynamoStore) deleteGeneration(ctx context.Context, folderID, genID string) error {
	chunks, err := s.loadGeneration(ctx, folderID, genID)
	if err != nil {
		return err
	}
	key := folderGenKey(folderID, genID)
	for start := 0; start < len(chunks); start += batchWriteMax {
		end := start + batchWriteMax
		if end > len(chunks) {
			end = len(chunks)
		}
		requests := make([]types.WriteRequest, 0, end-start)
		for _, c := range chunks[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{
						"folder_gen": &types.AttributeValueMemberS{Value: key},
						"chunk_id":   &types.AttributeValueMemberS{Value: c.ID},
					},
				},
			})
		}
		if _, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.chunkTable: requests},
		}); err != nil {
			return fmt.Errorf("failed to delete chunk batch: %w", err)
		}
	}
	return nil
}

// Query loads the committed generation and ranks it in process. Folders
// stay small enough (one folder, not a corpus) that a brute-force scan of
// the generation is the simplest correct approach.
func (s *DynamoStore) Query(ctx context.Context, folderID string, vector []float64, f Filters, topK int) ([]model.ScoredChunk, error) {
	genID, err := s.currentGen(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if genID == "" {
		return nil, ErrFolderNotIndexed
	}
	chunks, err := s.loadGeneration(ctx, folderID, genID)
	if err != nil {
		return nil, err
	}
	return Rank(chunks, vector, f, topK), nil
}

// GetFolderMeta resolves the folder's metadata tree. Unindexed children
// are skipped.
func (s *DynamoStore) GetFolderMeta(ctx context.Context, folderID string) (*model.FolderIndexMeta, error) {
	return s.resolveMeta(ctx, folderID, make(map[string]bool))
}

func (s *DynamoStore) resolveMeta(ctx context.Context, folderID string, seen map[string]bool) (*model.FolderIndexMeta, error) {
	if seen[folderID] {
		return nil, fmt.Errorf("folder metadata cycle at %s", folderID)
	}
	seen[folderID] = true

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.metaTable),
		Key: map[string]types.AttributeValue{
			"folder_id": &types.AttributeValueMemberS{Value: folderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get folder meta: %w", err)
	}
	if out.Item == nil {
		return nil, ErrFolderNotIndexed
	}
	var item folderMetaItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal folder meta: %w", err)
	}
	meta := item.FolderIndexMeta
	for _, childID := range meta.ChildIDs {
		child, err := s.resolveMeta(ctx, childID, seen)
		if err != nil {
			continue
		}
		meta.Children = append(meta.Children, child)
	}
	return &meta, nil
}

// DeleteFolder removes the meta row and the committed generation's chunks.
func (s *DynamoStore) DeleteFolder(ctx context.Context, folderID string) error {
	genID, err := s.currentGen(ctx, folderID)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.metaTable),
		Key: map[string]types.AttributeValue{
			"folder_id": &types.AttributeValueMemberS{Value: folderID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete folder meta: %w", err)
	}
	if genID != "" {
		if err := s.deleteGeneration(ctx, folderID, genID); err != nil {
			fmt.Printf("index: failed to delete chunks for folder %s: %v\n", folderID, err)
		}
	}
	return nil
}
